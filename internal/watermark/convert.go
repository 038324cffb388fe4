package watermark

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Image formats the engine accepts, as sniffed MIME types.
var supportedFormats = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// DecodeDataURL decodes a base64 image payload. The payload may be a full
// data URL ("data:image/png;base64,....") or a bare base64 string.
func DecodeDataURL(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, b64, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data URL", ErrUnsupportedInput)
		}
		s = b64
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty base64 data", ErrUnsupportedInput)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrUnsupportedInput, err)
	}
	return data, nil
}

// SniffFormat detects the image format of data by its magic bytes and returns
// the MIME type. Formats the engine cannot decode are rejected with
// ErrUnsupportedInput.
func SniffFormat(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image data", ErrUnsupportedInput)
	}

	mime := http.DetectContentType(data)
	if !supportedFormats[mime] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedInput, mime)
	}
	return mime, nil
}
