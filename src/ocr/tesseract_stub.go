//go:build !tesseract

package ocr

func newTesseract(string) (Reader, error) {
	return nil, ErrBackendUnavailable
}
