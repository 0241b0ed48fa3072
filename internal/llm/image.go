package llm

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/billsense/billsense/internal/common"
	"github.com/billsense/billsense/internal/model"
)

// supportedImageTypes are the MIME types the model accepts as inline data.
var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/heic": true,
	"image/heif": true,
}

// DecodePayload converts uploaded bytes into the model-callable payload,
// sniffing the MIME type from content. Plain text passes through as a text
// payload; anything that is neither text nor a supported image type is
// rejected.
func DecodePayload(content []byte) (model.ImagePayload, error) {
	if len(content) == 0 {
		return model.ImagePayload{}, fmt.Errorf("%w: empty content", common.ErrUnsupportedFileType)
	}

	detected := mimetype.Detect(content)

	for mt := detected; mt != nil; mt = mt.Parent() {
		if supportedImageTypes[mt.String()] {
			return model.ImagePayload{Data: content, MIMEType: mt.String()}, nil
		}
		if mt.Is("text/plain") {
			return model.ImagePayload{Data: content, MIMEType: "text/plain"}, nil
		}
	}

	return model.ImagePayload{}, fmt.Errorf("%w: %s", common.ErrUnsupportedFileType, detected.String())
}
