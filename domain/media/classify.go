package media

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrFileTooLarge     = errors.New("file too large")
)

var (
	imageTypes = map[string]bool{"image/jpeg": true, "image/png": true}
	imageExts  = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
	videoExts  = map[string]bool{".mp4": true, ".mpeg": true, ".mpg": true, ".m4v": true, ".mov": true}
)

// Classify decides whether a file is an image or a video. The declared media
// type wins; the extension is used when the type is missing or generic.
func Classify(name, mimeType string) (Class, error) {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		switch {
		case imageTypes[mt]:
			return Image, nil
		case strings.HasPrefix(mt, "video/"):
			return Video, nil
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case imageExts[ext]:
		return Image, nil
	case videoExts[ext]:
		return Video, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedMedia, "%s (%q)", filepath.Base(name), mimeType)
}

// CheckSize rejects files larger than max. max <= 0 disables the check.
func CheckSize(size, max int64) error {
	if max > 0 && size > max {
		return errors.Wrapf(ErrFileTooLarge, "%s exceeds %s",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(max)))
	}
	return nil
}

// DetectMime guesses a media type from the file extension.
func DetectMime(name string) string {
	return mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
}
