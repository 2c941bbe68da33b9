package nikoget

import "strings"

// mimeExtensions maps the MIME types that downloads are expected to report to the file
// extension the final file should get. Unknown MIME types yield no extension.
var mimeExtensions = map[string]string{
	"audio/mp3":       ".mp3",
	"audio/x-mpeg-3":  ".mp3",
	"audio/mpeg":      ".mp3",
	"audio/mpeg3":     ".mp3",
	"audio/mp4":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"audio/flac":      ".flac",
	"audio/x-flac":    ".flac",
	"audio/ogg":       ".ogg",
	"video/mp4":       ".mp4",
	"video/x-msvideo": ".avi",
	"video/quicktime": ".mov",
	"video/x-flv":     ".flv",
}

// ExtensionForMIME returns the file extension (with leading dot) for a MIME type, or ""
// when the type is unknown. Content-Type parameters ("; charset=...") are ignored.
func ExtensionForMIME(mime string) string {
	mime = strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	return mimeExtensions[strings.ToLower(mime)]
}
