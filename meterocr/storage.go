package meterocr

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

func gcsClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// Explicit JSON can be provided via GCS_CREDENTIALS_JSON for local runs.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// ArchiveImage stores the submitted meter photo for later audit. Archival is
// best-effort at call sites; a failed upload never blocks recognition.
func ArchiveImage(ctx context.Context, objectName string, imageDataURL string) error {
	bucketName := strings.TrimSpace(os.Getenv("METER_IMAGE_BUCKET"))
	if bucketName == "" {
		return errors.New("METER_IMAGE_BUCKET is required")
	}

	idx := strings.Index(imageDataURL, "base64,")
	if idx < 0 {
		return errors.New("image must be a base64 data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(imageDataURL[idx+len("base64,"):])
	if err != nil {
		return err
	}

	client, err := gcsClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	writer := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	writer.ContentType = "image/jpeg"
	if _, err := writer.Write(raw); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}
