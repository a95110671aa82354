package webdav

import (
	"encoding/xml"
	"fmt"
	"io"
)

// propfindBody asks only for resourcetype; names come from the hrefs.
const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:"><d:prop><d:resourcetype/></d:prop></d:propfind>`

// Wire types for the 207 Multi-Status body. Tags match local names only, so
// any namespace prefix the server picks (d:, D:, none) unmarshals the same.
type multistatus struct {
	XMLName   xml.Name      `xml:"multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href      string        `xml:"href"`
	Propstats []davPropstat `xml:"propstat"`
}

type davPropstat struct {
	Status string  `xml:"status"`
	Prop   davProp `xml:"prop"`
}

type davProp struct {
	ResourceType davResourceType `xml:"resourcetype"`
}

type davResourceType struct {
	Collection *struct{} `xml:"collection"`
}

// isCollection reports whether any propstat carried a collection
// resourcetype. Servers put resourcetype in the 200 block; absent props
// leave Collection nil.
func (r davResponse) isCollection() bool {
	for _, ps := range r.Propstats {
		if ps.Prop.ResourceType.Collection != nil {
			return true
		}
	}
	return false
}

func parseMultistatus(body io.Reader) (*multistatus, error) {
	var ms multistatus
	if err := xml.NewDecoder(body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("parse multistatus: %w", err)
	}
	return &ms, nil
}
