package webhook

// mimeExtensions maps carrier media content types to filename extensions.
var mimeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/3gpp":      ".3gp",
	"audio/ogg":       ".ogg",
	"audio/mpeg":      ".mp3",
	"audio/amr":       ".amr",
	"audio/wav":       ".wav",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"text/vcard":      ".vcf",
	"text/x-vcard":    ".vcf",
}

// ExtensionForMIME returns the filename extension for a media content type,
// defaulting to a generic binary extension for unknown types.
func ExtensionForMIME(contentType string) string {
	if ext, ok := mimeExtensions[contentType]; ok {
		return ext
	}
	return ".bin"
}
