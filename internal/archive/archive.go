// Package archive models the flat file index of an asset archive.
package archive

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultURLTemplate builds download URLs for files of a named archive.
const DefaultURLTemplate = "https://archive.org/download/{archive}/{filename}"

// DefaultMetadataTemplate locates the metadata document of a named archive.
const DefaultMetadataTemplate = "https://archive.org/metadata/{archive}"

// File is a single archive entry.
type File struct {
	Name  string `json:"name"`
	CRC32 string `json:"crc32,omitempty"`
	MD5   string `json:"md5,omitempty"`
}

// Index is a name to checksum lookup for one archive. The zero value is an
// empty index in which every lookup misses.
type Index struct {
	Name     string
	BaseURL  string
	Template string
	files    map[string]File
}

// New builds an index over files. BaseURL, when set, replaces the templated
// download location.
func New(name, baseURL string, files []File) *Index {
	idx := &Index{Name: name, BaseURL: baseURL, files: make(map[string]File, len(files))}
	for _, f := range files {
		if f.Name == "" {
			continue
		}
		idx.files[f.Name] = f
	}
	return idx
}

// Parse reads an archive metadata document (archive.org layout: a top-level
// "files" array with name/crc32/md5 members).
func Parse(name, baseURL string, contents []byte) (*Index, error) {
	if !gjson.ValidBytes(contents) {
		return nil, fmt.Errorf("archive %s: invalid metadata document", name)
	}
	var files []File
	gjson.GetBytes(contents, "files").ForEach(func(_, value gjson.Result) bool {
		files = append(files, File{
			Name:  value.Get("name").String(),
			CRC32: value.Get("crc32").String(),
			MD5:   value.Get("md5").String(),
		})
		return true
	})
	return New(name, baseURL, files), nil
}

// Lookup returns the entry for name. Missing entries mean no reference is
// available, not that the file is invalid.
func (i *Index) Lookup(name string) (File, bool) {
	if i == nil || i.files == nil {
		return File{}, false
	}
	f, ok := i.files[name]
	return f, ok
}

// Len returns the number of indexed files.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.files)
}

// URL returns the download location of filename.
func (i *Index) URL(filename string) string {
	escaped := escapePath(filename)
	if i != nil && i.BaseURL != "" {
		return strings.TrimSuffix(i.BaseURL, "/") + "/" + escaped
	}
	archiveName, template := "", DefaultURLTemplate
	if i != nil {
		archiveName = i.Name
		if i.Template != "" {
			template = i.Template
		}
	}
	return Expand(template, archiveName, escaped)
}

// Expand fills the {archive} and {filename} placeholders of a template.
func Expand(template, archiveName, filename string) string {
	r := strings.NewReplacer("{archive}", url.PathEscape(archiveName), "{filename}", filename)
	return r.Replace(template)
}

func escapePath(name string) string {
	parts := strings.Split(path.Clean(strings.ReplaceAll(name, "\\", "/")), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
