package greq

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MultipartField is one part of a multipart/form-data body.
type MultipartField struct {
	Key         string
	value       io.Reader
	filename    *string
	contentType *string
	err         error
}

func NewMultipartField(key string) *MultipartField {
	return &MultipartField{Key: key}
}

// MultipartFieldsFromMap builds fields from a map. Values may be string-like,
// numeric, boolean, []byte, []string (one part per element) or io.Reader.
// Fields are returned in key order.
func MultipartFieldsFromMap(m map[string]any) ([]*MultipartField, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	fields := make([]*MultipartField, 0, len(m))
	for _, k := range keys {
		switch vc := m[k].(type) {
		case []byte:
			fields = append(fields, NewMultipartField(k).WithBytesValue(vc))
		case []string:
			for _, s := range vc {
				fields = append(fields, NewMultipartField(k).WithStringValue(s))
			}
		case io.Reader:
			fields = append(fields, NewMultipartField(k).WithReaderValue(vc))
		default:
			s, err := stringValue(vc)
			if err != nil {
				return nil, validationError(fmt.Sprintf("unsupported type %T for key %s", vc, k)).
					WithContext("field", k).
					Build()
			}
			fields = append(fields, NewMultipartField(k).WithStringValue(s))
		}
	}

	return fields, nil
}

func (m *MultipartField) WithStringValue(value string) *MultipartField {
	m.value = strings.NewReader(value)
	return m
}

func (m *MultipartField) WithBytesValue(value []byte) *MultipartField {
	m.value = bytes.NewReader(value)
	return m
}

func (m *MultipartField) WithReaderValue(value io.Reader) *MultipartField {
	m.value = value
	return m
}

func (m *MultipartField) WithFilename(filename string) *MultipartField {
	m.filename = &filename
	return m
}

func (m *MultipartField) WithContentType(contentType string) *MultipartField {
	m.contentType = &contentType
	return m
}

// WithPipe streams the part from the read side of an io.Pipe.
func (m *MultipartField) WithPipe(pipe *io.PipeReader) *MultipartField {
	m.value = pipe
	return m
}

// WithFile attaches a file. Without an explicit content type it is sniffed
// from the file contents. The file is closed once written.
func (m *MultipartField) WithFile(file *os.File, contentType ...string) *MultipartField {
	cType := contentTypeOr("", contentType)
	if cType == "" {
		cType = "application/octet-stream"
		if mt, err := mimetype.DetectReader(file); err == nil {
			cType = mt.String()
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			m.err = err
		}
	}

	return m.WithFilename(filepath.Base(file.Name())).WithContentType(cType).WithReaderValue(file)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// AddToWriter writes the part to w, closing the value if it is an io.Closer.
func (m *MultipartField) AddToWriter(w *multipart.Writer) error {
	if x, ok := m.value.(io.Closer); ok {
		defer x.Close()
	}
	if m.err != nil {
		return m.err
	}
	if m.value == nil {
		return fmt.Errorf("multipart field %s has no value", m.Key)
	}

	var (
		fw  io.Writer
		err error
	)
	if m.filename != nil || m.contentType != nil {
		header := textproto.MIMEHeader{}
		disp := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(m.Key))
		if m.filename != nil {
			disp += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(*m.filename))
		}
		header.Set("Content-Disposition", disp)
		if m.contentType != nil {
			header.Set("Content-Type", *m.contentType)
		}
		fw, err = w.CreatePart(header)
	} else {
		fw, err = w.CreateFormField(m.Key)
	}
	if err != nil {
		return err
	}

	_, err = io.Copy(fw, m.value)
	return err
}
