package api

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/jritsema/gotoolbox/web"
)

var (
	//go:embed all:templates/*
	templateFS embed.FS

	//parsed templates
	html *template.Template
)

func init() {
	var err error
	html, err = web.TemplateParseFSRecursive(templateFS, ".html", true, nil)
	if err != nil {
		panic(err)
	}
}

func getString(templateName string, data any) string {
	sb := &strings.Builder{}
	err := html.ExecuteTemplate(sb, templateName, data)
	if err != nil {
		return err.Error()
	}

	return sb.String()
}

func getHtml(templateName string, data any) template.HTML {
	return template.HTML(getString(templateName, data))
}

type page struct {
	Title     string
	Content   template.HTML
	DarkTheme bool
}

func isDarkTheme(r *http.Request) bool {
	themeCookie, err := r.Cookie("theme")
	if err != nil {
		return true
	}

	return themeCookie.Value == "dark"
}

func createPage(r *http.Request) *page {
	return &page{
		Title:     "VITS TTS",
		DarkTheme: isDarkTheme(r),
	}
}

func submitPage(w http.ResponseWriter, page *page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = html.ExecuteTemplate(w, "page.html", page)
}
