package media

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
)

// multipartAudio streams an audio file as a multipart body without buffering
// it in memory. extra fields are written after the file part.
func multipartAudio(audioPath string, fields map[string]string) (io.Reader, string, error) {
	audioFile, err := os.Open(audioPath)
	if err != nil {
		return nil, "", errors.NewProviderPermanentError("failed to open audio file", "AUDIO_FILE_ERROR", err)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer audioFile.Close()

		// A failed write must surface on the read side; closing the writer
		// normally would emit a valid boundary around a truncated body.
		part, err := writer.CreateFormFile("file", "audio.mp3")
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, audioFile); err != nil {
			pw.CloseWithError(err)
			return
		}
		for key, value := range fields {
			if err := writer.WriteField(key, value); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		if err := writer.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	return pr, writer.FormDataContentType(), nil
}

// classifyStatus maps a non-200 provider response onto the error taxonomy:
// 429 and 5xx are transient, everything else is permanent.
func classifyStatus(provider string, status int, body []byte) *errors.AppError {
	msg := fmt.Sprintf("%s API error (status %d): %s", provider, status, string(body))
	code := fmt.Sprintf("%s_API_HTTP_ERROR", providerCode(provider))

	switch {
	case status == http.StatusTooManyRequests:
		return errors.NewRateLimitError(msg, code, "Wait for the provider rate limit to reset.")
	case status >= 500:
		return errors.NewProviderTransientError(msg, code, nil)
	default:
		return errors.NewProviderPermanentError(msg, code, nil)
	}
}

func providerCode(provider string) string {
	switch provider {
	case ProviderWhisper:
		return "WHISPER"
	case ProviderGroq:
		return "GROQ"
	case ProviderWhisperX:
		return "WHISPERX"
	default:
		return "PROVIDER"
	}
}
