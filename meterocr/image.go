package meterocr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/disintegration/imaging"
)

const maxUploadWidth = 1024

// PrepareImage decodes a data-URL image and downscales anything wider than
// maxUploadWidth before it goes to the classification service; phone photos
// of a horimeter are routinely several megabytes.
func PrepareImage(dataURL string) (string, error) {
	idx := strings.Index(dataURL, "base64,")
	if idx < 0 {
		return "", errors.New("image must be a base64 data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+len("base64,"):])
	if err != nil {
		return "", err
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	if img.Bounds().Dx() > maxUploadWidth {
		img = imaging.Resize(img, maxUploadWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
