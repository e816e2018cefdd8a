package external

import "context"

// TextGenerator abstracts the chat-completion provider used for article
// generation, blog titles, and resume review.
type TextGenerator interface {
	// Generate produces a completion for the prompt, bounded by maxTokens
	// when maxTokens > 0.
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ImageGenerator abstracts the text-to-image provider.
type ImageGenerator interface {
	// Generate renders the prompt and returns the raw image bytes.
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// ImageEditor abstracts generative image editing operations.
type ImageEditor interface {
	// RemoveBackground strips the background from the image.
	RemoveBackground(ctx context.Context, image []byte) ([]byte, error)
	// RemoveObject removes the named object from the image.
	RemoveObject(ctx context.Context, image []byte, object string) ([]byte, error)
}

// MediaStore abstracts durable object storage for generated media.
type MediaStore interface {
	// Upload stores the object under key and returns its public URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
