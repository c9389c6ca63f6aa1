package ocr

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"github.com/shopspring/decimal"
)

// Result is the amount read off a transfer receipt. Confidence is a 0..1
// proxy, not a Tesseract score.
type Result struct {
	Amount     decimal.Decimal
	Confidence float64
	Raw        string
	Text       string
}

// ExtractAmount runs two OCR passes over the image (grayscale and
// binarized) and picks the most credible amount across both texts.
// ErrNoAmount is returned when nothing plausible is found.
func ExtractAmount(path string) (Result, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("open image: %w", err)
	}
	gray := imaging.Grayscale(img)
	if gray.Bounds().Dy() < 800 {
		gray = imaging.Resize(gray, 0, 1200, imaging.Lanczos)
	}
	gray = imaging.Sharpen(imaging.AdjustContrast(gray, 20), 1)

	var texts []string
	for _, variant := range []image.Image{gray, binarize(gray, 160)} {
		text, err := recognize(variant)
		if err != nil {
			return Result{}, err
		}
		texts = append(texts, normalizeText(text))
	}
	all := strings.Join(texts, " ")

	amt, raw, ok := BestAmount(Candidates(all))
	if !ok {
		if amt, raw := extractRibu(all); amt.IsPositive() {
			return Result{Amount: amt, Confidence: 0.5, Raw: raw, Text: all}, nil
		}
		return Result{Text: all}, ErrNoAmount
	}
	return Result{Amount: amt, Confidence: confidence(raw, all), Raw: raw, Text: all}, nil
}

// recognize writes img to a temporary PNG and runs Tesseract on it.
func recognize(img image.Image) (string, error) {
	tmp, err := os.CreateTemp("", "ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(name)
	if err := imaging.Save(img, name); err != nil {
		return "", fmt.Errorf("save temp image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage("eng")
	_ = client.SetWhitelist("0123456789RpIDRidrJjumlahNnominalTtotalZzakatIinfaqsedk.,:()/- ")
	if err := client.SetImage(name); err != nil {
		return "", fmt.Errorf("ocr set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr error: %w", err)
	}
	return text, nil
}

// confidence grows with how much of the text the chosen match covers and is
// lifted when the match carries a currency marker or cents.
func confidence(raw, text string) float64 {
	conf := float64(len(raw)) / float64(len(text)+1)
	if conf > 1 {
		conf = 1
	}
	low := strings.ToLower(raw)
	if strings.Contains(low, "rp") || strings.Contains(low, "idr") || centsRE.MatchString(raw) {
		if conf < 0.85 {
			conf = 0.85
		}
	}
	return conf
}

func normalizeText(t string) string {
	return strings.Join(strings.Fields(t), " ")
}
