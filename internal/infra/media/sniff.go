package media

// SniffContentType detects the content type of a media payload from its
// magic bytes, falling back to the given default when nothing matches.
func SniffContentType(data []byte, fallback string) string {
	if len(data) < 12 {
		return fallback
	}

	switch {
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46:
		return "image/gif"
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46:
		// RIFF container: WEBP image or WAVE audio
		if data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
			return "image/webp"
		}
		if data[8] == 0x57 && data[9] == 0x41 && data[10] == 0x56 && data[11] == 0x45 {
			return "audio/wav"
		}
		return fallback
	case data[0] == 0x49 && data[1] == 0x44 && data[2] == 0x33:
		// ID3 tag prefix
		return "audio/mpeg"
	case data[0] == 0xFF && (data[1]&0xE0) == 0xE0:
		// Bare MPEG audio frame sync
		return "audio/mpeg"
	case data[0] == 0x66 && data[1] == 0x4C && data[2] == 0x61 && data[3] == 0x43:
		return "audio/flac"
	case data[0] == 0x4F && data[1] == 0x67 && data[2] == 0x67 && data[3] == 0x53:
		return "audio/ogg"
	}

	return fallback
}
