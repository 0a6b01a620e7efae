package testasset

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// ResourceFileName is the per-action resource container holding the action's
// description and parameter declarations.
const ResourceFileName = "Resource.mtr"

// componentInfoStream is the stream inside the resource container that holds
// the UTF-16 XML payload.
const componentInfoStream = "ComponentInfo"

// ActionResource is the decoded content of one action resource file.
type ActionResource struct {
	Description string
	Params      []model.Param
}

// ParseActionResource reads an action's resource container. The file is a
// compound (CFB) document; the interesting stream carries UTF-16LE XML with
// leading binary junk before the first angle bracket.
func ParseActionResource(path string) (*ActionResource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	doc, err := mscfb.New(f)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if !strings.EqualFold(entry.Name, componentInfoStream) {
			continue
		}
		raw, err := io.ReadAll(entry)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		res, err := decodeResourceXML(raw)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		return res, nil
	}
	return nil, &ParseError{Path: path, Err: fmt.Errorf("no %s stream", componentInfoStream)}
}

// decodeResourceXML locates the UTF-16LE XML payload inside a raw stream and
// decodes it. The payload starts at the first UTF-16LE '<' on an even offset.
func decodeResourceXML(raw []byte) (*ActionResource, error) {
	start := -1
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == '<' && raw[i+1] == 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("no XML payload in stream")
	}

	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	text, _, err := transform.Bytes(decoder, raw[start:])
	if err != nil {
		return nil, fmt.Errorf("decode UTF-16 payload: %w", err)
	}

	var doc resourceDoc
	if err := xml.Unmarshal(text, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal resource XML: %w", err)
	}

	res := &ActionResource{Description: strings.TrimSpace(doc.Description)}
	for _, p := range doc.Parameters {
		direction := model.ParamDirectionInput
		if p.Direction == "1" {
			direction = model.ParamDirectionOutput
		}
		res.Params = append(res.Params, model.Param{
			Name:         p.Name,
			Direction:    direction,
			DefaultValue: p.DefaultValue,
			SyncStatus:   model.SyncStatusNew,
		})
	}
	return res, nil
}

type resourceDoc struct {
	XMLName     xml.Name        `xml:"Resource"`
	Description string          `xml:"Description"`
	Parameters  []resourceParam `xml:"Parameters>Parameter"`
}

type resourceParam struct {
	Name         string `xml:"Name,attr"`
	Direction    string `xml:"Direction,attr"`
	DefaultValue string `xml:"DefaultValue,attr"`
}
