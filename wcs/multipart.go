package wcs

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
)

const multipartBoundary = "wcs"

type part struct {
	header textproto.MIMEHeader
	body   []byte
}

// coverageHeader is the header of a part carrying encoded coverage data.
// An empty disposition file name gives a bare INLINE disposition.
func coverageHeader(mimeType, fileName string, named bool) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", mimeType)
	h.Set("Content-Description", "coverage data")
	h.Set("Content-Transfer-Encoding", "binary")
	h["Content-ID"] = []string{"coverage/" + fileName}
	if named {
		h.Set("Content-Disposition", "INLINE; filename="+fileName)
	} else {
		h.Set("Content-Disposition", "INLINE")
	}
	return h
}

// writeMultipart encodes parts under the fixed "wcs" boundary and returns
// the body together with its content type.
func writeMultipart(subtype string, parts []part) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(multipartBoundary); err != nil {
		return nil, "", err
	}
	for _, p := range parts {
		w, err := mw.CreatePart(p.header)
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(p.body); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "multipart/" + subtype + "; boundary=" + multipartBoundary, nil
}
