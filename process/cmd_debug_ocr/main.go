package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"bezis/pkg/ocr"
)

func main() {
	f := flag.String("file", "", "image file to OCR")
	text := flag.Bool("text", false, "also print the recognized text and every candidate")
	flag.Parse()
	if *f == "" {
		log.Fatalf("-file required")
	}
	res, err := ocr.ExtractAmount(*f)
	if *text {
		fmt.Printf("text=%q\n", res.Text)
		for _, c := range ocr.Candidates(res.Text) {
			fmt.Printf("candidate=%q\n", c)
		}
	}
	if errors.Is(err, ocr.ErrNoAmount) {
		fmt.Println("no amount found")
		return
	}
	if err != nil {
		log.Fatalf("ocr error: %v", err)
	}
	fmt.Printf("amount=%s conf=%.4f found=%q\n", res.Amount.StringFixed(2), res.Confidence, res.Raw)
}
