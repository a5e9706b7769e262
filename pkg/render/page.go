package render

import (
	"io"
)

// PageData is the document shell around a mounted container.
type PageData struct {
	Title string

	// Banners is rendered above the container (notifications).
	Banners string

	// Body is the container's rendered HTML.
	Body string

	// Scripts are added to the end of body.
	Scripts []string
}

// RenderPage writes a complete HTML document.
func RenderPage(w io.Writer, page PageData) error {
	var b []byte
	b = append(b, "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n"...)
	b = append(b, "<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n"...)
	b = append(b, "<title>"...)
	b = append(b, EscapeHTML(page.Title)...)
	b = append(b, "</title>\n</head>\n<body>\n"...)
	if page.Banners != "" {
		b = append(b, page.Banners...)
		b = append(b, '\n')
	}
	b = append(b, "<div id=\"app\">"...)
	b = append(b, page.Body...)
	b = append(b, "</div>\n"...)
	for _, src := range page.Scripts {
		b = append(b, "<script src=\""...)
		b = append(b, EscapeAttr(src)...)
		b = append(b, "\" defer></script>\n"...)
	}
	b = append(b, "</body>\n</html>\n"...)

	_, err := w.Write(b)
	return err
}
