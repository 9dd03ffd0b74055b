// Package i18nx loads the embedded message catalogs and resolves the
// request language.
package i18nx

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Bundle holds every locale's messages keyed "namespace:key".
type Bundle struct {
	tags     []language.Tag // BaseLocale first
	matcher  language.Matcher
	builder  *catalog.Builder
	messages map[language.Tag]map[string]string
}

var defaultBundle = mustLoad()

// Default returns the bundle built from the embedded catalogs.
func Default() *Bundle { return defaultBundle }

// LoadFS loads locales/<locale>/<namespace>.yaml files from fsys.
func LoadFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("i18nx: glob catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("i18nx: no catalog files found")
	}
	sort.Strings(paths)

	base := language.MustParse(BaseLocale)
	b := &Bundle{
		builder:  catalog.NewBuilder(catalog.Fallback(base)),
		messages: map[language.Tag]map[string]string{},
	}

	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("i18nx: read %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("i18nx: parse %s: %w", p, err)
		}
		if err := b.add(p, file); err != nil {
			return nil, err
		}
	}

	if _, ok := b.messages[base]; !ok {
		return nil, fmt.Errorf("i18nx: base locale %s is not defined", BaseLocale)
	}

	b.tags = append(b.tags, base)
	for tag := range b.messages {
		if tag != base {
			b.tags = append(b.tags, tag)
		}
	}
	sort.Slice(b.tags[1:], func(i, j int) bool { return b.tags[i+1].String() < b.tags[j+1].String() })
	b.matcher = language.NewMatcher(b.tags)

	return b, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	wantLocale := path.Base(path.Dir(p))
	wantNamespace := strings.TrimSuffix(path.Base(p), path.Ext(p))

	if file.Locale != wantLocale {
		return fmt.Errorf("i18nx: catalog %s: locale %q must match path locale %q", p, file.Locale, wantLocale)
	}
	if file.Namespace != wantNamespace {
		return fmt.Errorf("i18nx: catalog %s: namespace %q must match filename %q", p, file.Namespace, wantNamespace)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("i18nx: catalog %s: messages are required", p)
	}

	tag, err := language.Parse(file.Locale)
	if err != nil {
		return fmt.Errorf("i18nx: catalog %s: %w", p, err)
	}

	msgs, ok := b.messages[tag]
	if !ok {
		msgs = map[string]string{}
		b.messages[tag] = msgs
	}

	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("i18nx: catalog %s: blank message key", p)
		}
		full := file.Namespace + ":" + key
		if _, dup := msgs[full]; dup {
			return fmt.Errorf("i18nx: catalog %s: duplicate key %q", p, full)
		}
		msgs[full] = value
		if err := b.builder.SetString(tag, full, value); err != nil {
			return fmt.Errorf("i18nx: catalog %s: %w", p, err)
		}
	}
	return nil
}

// Supported lists the loaded locales, base locale first.
func (b *Bundle) Supported() []language.Tag {
	return append([]language.Tag(nil), b.tags...)
}

// Match picks the best supported locale for the preferred tags.
func (b *Bundle) Match(preferred ...language.Tag) language.Tag {
	if len(preferred) == 0 {
		return b.tags[0]
	}
	_, idx, conf := b.matcher.Match(preferred...)
	if conf == language.No {
		return b.tags[0]
	}
	return b.tags[idx]
}

// Has reports whether key exists in the base locale.
func (b *Bundle) Has(key string) bool {
	_, ok := b.messages[b.tags[0]][key]
	return ok
}

// Translate returns the message for key ("auth:errors.otp_expired") in the
// best locale for tag, falling back to the base locale and then to the key
// itself.
func (b *Bundle) Translate(tag language.Tag, key string, args ...any) string {
	if !b.Has(key) {
		return key
	}
	p := message.NewPrinter(b.Match(tag), message.Catalog(b.builder))
	return p.Sprintf(key, args...)
}

func mustLoad() *Bundle {
	b, err := LoadFS(embeddedFS)
	if err != nil {
		panic(err)
	}
	return b
}
