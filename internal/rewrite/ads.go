package rewrite

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AdClassifier decides whether an element is an advertisement to remove.
type AdClassifier func(s *goquery.Selection) bool

// adCandidates is the selector the classifier is evaluated on.
const adCandidates = "div, iframe"

// DefaultAdClassifier matches a div or iframe whose class contains "ad",
// a div whose id contains "ad", and any div carrying data-ad-unit.
//
// The substring test also matches names such as "header" or "shadow".
// Supply a stricter classifier where that matters.
func DefaultAdClassifier(s *goquery.Selection) bool {
	tag := goquery.NodeName(s)

	if class, ok := s.Attr("class"); ok && strings.Contains(class, "ad") {
		return tag == "div" || tag == "iframe"
	}
	if tag != "div" {
		return false
	}
	if id, ok := s.Attr("id"); ok && strings.Contains(id, "ad") {
		return true
	}
	_, ok := s.Attr("data-ad-unit")
	return ok
}

// removeAds deletes every element matched by classify and returns the count.
func removeAds(doc *goquery.Document, classify AdClassifier) int {
	matched := doc.Find(adCandidates).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classify(s)
	})
	n := matched.Length()
	matched.Remove()
	return n
}
