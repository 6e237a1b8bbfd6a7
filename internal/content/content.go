// Package content renders the club's informational sections and account
// forms. Each section name maps to one render function; the browser script
// swaps the returned fragment into the page.
package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Section identifies one switchable region of the page.
type Section string

const (
	SectionHistory  Section = "history"
	SectionPhotos   Section = "photos"
	SectionMemories Section = "memories"
	SectionLegend   Section = "legend"
	SectionRegister Section = "register"
	SectionLogin    Section = "login"
	SectionPictures Section = "pictures"
)

// DefaultSection is shown when the page first loads.
const DefaultSection = SectionHistory

// Sections lists every section in navigation order.
var Sections = []Section{
	SectionHistory,
	SectionPhotos,
	SectionMemories,
	SectionLegend,
	SectionPictures,
	SectionRegister,
	SectionLogin,
}

// ErrUnknownSection is returned for names outside the fixed set.
var ErrUnknownSection = errors.New("unknown section")

// ParseSection validates a requested section name.
func ParseSection(name string) (Section, error) {
	s := Section(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Sections {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, name)
}

// Title is the navigation label of the section.
func (s Section) Title() string {
	switch s {
	case SectionHistory:
		return "History"
	case SectionPhotos:
		return "Photos"
	case SectionMemories:
		return "Memories"
	case SectionLegend:
		return "Legend"
	case SectionPictures:
		return "Pictures"
	case SectionRegister:
		return "Register"
	case SectionLogin:
		return "Login"
	}
	return string(s)
}

// Options configures the URLs the rendered markup points at.
type Options struct {
	APIBase     string // prefix of the /register and /login endpoints
	ImagesURL   string // URL prefix images are served under
	WelcomePath string // redirect target after a successful login
}

// Photo is one gallery image.
type Photo struct {
	Src string
	Alt string
}

// Picture is a captioned image in the pictures section.
type Picture struct {
	Src     string
	Caption string
}

type renderFunc func(w io.Writer) error

// Renderer renders sections and pages from the embedded templates.
type Renderer struct {
	tmpl     *template.Template
	assets   fs.FS
	opts     Options
	sections map[Section]renderFunc
}

// NewRenderer parses the embedded templates and builds the section registry.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.ImagesURL == "" {
		opts.ImagesURL = "/images"
	}
	if opts.WelcomePath == "" {
		opts.WelcomePath = "/welcome.html"
	}
	opts.APIBase = strings.TrimRight(opts.APIBase, "/")

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	assets, err := StaticFS()
	if err != nil {
		return nil, err
	}

	r := &Renderer{tmpl: tmpl, assets: assets, opts: opts}
	r.sections = map[Section]renderFunc{
		SectionHistory:  r.text("section-history"),
		SectionMemories: r.text("section-memories"),
		SectionLegend:   r.text("section-legend"),
		SectionPhotos:   r.photos,
		SectionPictures: r.pictures,
		SectionRegister: r.form("section-register"),
		SectionLogin:    r.form("section-login"),
	}
	return r, nil
}

// RenderSection writes the HTML fragment for s.
func (r *Renderer) RenderSection(w io.Writer, s Section) error {
	render, ok := r.sections[s]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSection, s)
	}
	return render(w)
}

type navItem struct {
	Section Section
	Title   string
}

// RenderPage writes the full page shell with initial pre-rendered.
func (r *Renderer) RenderPage(w io.Writer, initial Section) error {
	var buf bytes.Buffer
	if err := r.RenderSection(&buf, initial); err != nil {
		return err
	}

	nav := make([]navItem, 0, len(Sections))
	for _, s := range Sections {
		nav = append(nav, navItem{Section: s, Title: s.Title()})
	}

	return r.tmpl.ExecuteTemplate(w, "page", struct {
		Nav     []navItem
		Initial Section
		Content template.HTML
		APIBase string
	}{
		Nav:     nav,
		Initial: initial,
		Content: template.HTML(buf.String()),
		APIBase: r.opts.APIBase,
	})
}

// RenderWelcome writes the page shown after a successful login.
func (r *Renderer) RenderWelcome(w io.Writer) error {
	return r.tmpl.ExecuteTemplate(w, "welcome", nil)
}

// Assets returns the browser assets served under /static.
func (r *Renderer) Assets() fs.FS {
	return r.assets
}

// StaticFS returns the embedded browser assets (script and stylesheet).
func StaticFS() (fs.FS, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static assets: %w", err)
	}
	return sub, nil
}

func (r *Renderer) text(name string) renderFunc {
	return func(w io.Writer) error {
		return r.tmpl.ExecuteTemplate(w, name, nil)
	}
}

func (r *Renderer) form(name string) renderFunc {
	return func(w io.Writer) error {
		return r.tmpl.ExecuteTemplate(w, name, struct {
			WelcomePath string
		}{WelcomePath: r.opts.WelcomePath})
	}
}

const galleryPhotoCount = 10

func (r *Renderer) photos(w io.Writer) error {
	photos := make([]Photo, 0, galleryPhotoCount)
	for i := 1; i <= galleryPhotoCount; i++ {
		file := fmt.Sprintf("c%d.jpg", i)
		photos = append(photos, Photo{Src: path.Join(r.opts.ImagesURL, file), Alt: file})
	}
	return r.tmpl.ExecuteTemplate(w, "section-photos", photos)
}

var pictureCaptions = []struct {
	file    string
	caption string
}{
	{"ground.jpg", "Our home ground on match morning"},
	{"nets.jpg", "Evening nets practice"},
	{"pavilion.jpg", "The club pavilion"},
	{"juniors.jpg", "Junior squad after their first league win"},
	{"trophy.jpg", "Trophy night at the end of the season"},
}

func (r *Renderer) pictures(w io.Writer) error {
	pics := make([]Picture, 0, len(pictureCaptions))
	for _, p := range pictureCaptions {
		pics = append(pics, Picture{Src: path.Join(r.opts.ImagesURL, "pictures", p.file), Caption: p.caption})
	}
	return r.tmpl.ExecuteTemplate(w, "section-pictures", pics)
}
