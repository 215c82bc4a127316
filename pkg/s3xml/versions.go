package s3xml

import (
	"encoding/xml"

	"github.com/3leaps/s3keeper/pkg/provider"
)

const (
	elemVersion      = "Version"
	elemDeleteMarker = "DeleteMarker"
)

type listVersionsResultXML struct {
	XMLName             xml.Name          `xml:"ListVersionsResult"`
	Xmlns               string            `xml:"xmlns,attr,omitempty"`
	Name                *string           `xml:"Name"`
	Prefix              *string           `xml:"Prefix"`
	Delimiter           *string           `xml:"Delimiter,omitempty"`
	EncodingType        *string           `xml:"EncodingType,omitempty"`
	KeyMarker           *string           `xml:"KeyMarker,omitempty"`
	VersionIDMarker     *string           `xml:"VersionIdMarker,omitempty"`
	NextKeyMarker       *string           `xml:"NextKeyMarker,omitempty"`
	NextVersionIDMarker *string           `xml:"NextVersionIdMarker,omitempty"`
	MaxKeys             *string           `xml:"MaxKeys,omitempty"`
	IsTruncated         *string           `xml:"IsTruncated,omitempty"`
	CommonPrefixes      []commonPrefixXML `xml:"CommonPrefixes"`

	// Entries holds Version and DeleteMarker elements in document order.
	Entries []versionNodeXML `xml:",any"`
}

type versionNodeXML struct {
	XMLName      xml.Name
	Key          *string   `xml:"Key"`
	VersionID    *string   `xml:"VersionId,omitempty"`
	IsLatest     *string   `xml:"IsLatest,omitempty"`
	LastModified *string   `xml:"LastModified,omitempty"`
	ETag         *string   `xml:"ETag,omitempty"`
	Size         *string   `xml:"Size,omitempty"`
	StorageClass *string   `xml:"StorageClass,omitempty"`
	Owner        *ownerXML `xml:"Owner,omitempty"`
	Raw          string    `xml:",innerxml"`
}

type ownerXML struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName,omitempty"`
}

// DecodeListVersionsResult decodes a ListObjectVersions response body.
//
// Versions and delete markers are returned interleaved in document order.
// With EncodingType url, keys, prefixes and NextKeyMarker are decoded.
// NextMarker is set only when both NextKeyMarker and NextVersionIdMarker are
// present and the result is not explicitly marked complete.
func DecodeListVersionsResult(data []byte) (*provider.VersionPageResult, error) {
	var doc listVersionsResultXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, syntaxError("ListVersionsResult", err)
	}

	root := &fieldReader{parent: "ListVersionsResult"}
	encoded := deref(doc.EncodingType) == EncodingURL
	delimiter := root.unescape("Delimiter", deref(doc.Delimiter), encoded)
	page := &provider.VersionPageResult{
		Prefix:    root.unescape("Prefix", deref(doc.Prefix), encoded),
		Delimiter: delimiter,
		Items:     make([]provider.VersionItem, 0, len(doc.Entries)),
	}

	truncated := true
	if doc.IsTruncated != nil {
		truncated = root.boolean("IsTruncated", doc.IsTruncated)
	}
	nextKey := root.unescape("NextKeyMarker", deref(doc.NextKeyMarker), encoded)
	if root.err != nil {
		return nil, root.err
	}
	if truncated {
		page.NextMarker = provider.NewVersionMarker(nextKey, deref(doc.NextVersionIDMarker))
	}

	for _, node := range doc.Entries {
		switch node.XMLName.Local {
		case elemVersion:
			entry, err := decodeVersion(node, delimiter, encoded)
			if err != nil {
				return nil, err
			}
			page.Items = append(page.Items, provider.VersionItem{Version: entry})
		case elemDeleteMarker:
			marker, err := decodeDeleteMarker(node, delimiter, encoded)
			if err != nil {
				return nil, err
			}
			page.Items = append(page.Items, provider.VersionItem{DeleteMarker: marker})
		}
	}

	return page, nil
}

func decodeVersion(node versionNodeXML, delimiter string, encoded bool) (*provider.ObjectEntry, error) {
	r := &fieldReader{parent: elemVersion, node: node.Raw}
	entry := &provider.ObjectEntry{
		Key:          r.unescape("Key", r.required("Key", node.Key), encoded),
		Delimiter:    delimiter,
		ETag:         cleanETag(deref(node.ETag)),
		LastModified: r.timestamp("LastModified", node.LastModified),
		Size:         r.integer("Size", node.Size),
		StorageClass: deref(node.StorageClass),
		Version: &provider.VersionInfo{
			VersionID: r.required("VersionId", node.VersionID),
			IsLatest:  r.boolean("IsLatest", node.IsLatest),
		},
	}
	if r.err != nil {
		return nil, r.err
	}
	return entry, nil
}

func decodeDeleteMarker(node versionNodeXML, delimiter string, encoded bool) (*provider.DeleteMarker, error) {
	r := &fieldReader{parent: elemDeleteMarker, node: node.Raw}
	marker := &provider.DeleteMarker{
		Key:          r.unescape("Key", r.required("Key", node.Key), encoded),
		Delimiter:    delimiter,
		VersionID:    deref(node.VersionID),
		IsLatest:     r.optionalBool("IsLatest", node.IsLatest),
		LastModified: r.optionalTimestamp("LastModified", node.LastModified),
	}
	if node.Owner != nil {
		marker.Owner = &provider.Owner{ID: node.Owner.ID, DisplayName: node.Owner.DisplayName}
	}
	if r.err != nil {
		return nil, r.err
	}
	return marker, nil
}

// EncodeListVersionsResult renders a versions page as a ListObjectVersions
// response body, preserving item order.
func EncodeListVersionsResult(bucket string, page *provider.VersionPageResult) ([]byte, error) {
	doc := listVersionsResultXML{
		Xmlns:       Namespace,
		Name:        ptr(bucket),
		Prefix:      ptr(page.Prefix),
		Delimiter:   optional(page.Delimiter),
		IsTruncated: ptr(btoa(page.HasMore())),
	}
	if page.NextMarker != nil {
		doc.NextKeyMarker = ptr(page.NextMarker.KeyMarker)
		doc.NextVersionIDMarker = ptr(page.NextMarker.VersionIDMarker)
	}

	for _, item := range page.Items {
		switch {
		case item.Version != nil:
			v := item.Version
			node := versionNodeXML{
				XMLName:      xml.Name{Local: elemVersion},
				Key:          ptr(v.Key),
				LastModified: ptr(FormatTime(v.LastModified)),
				ETag:         optional(quoteETag(v.ETag)),
				Size:         ptr(i64toa(v.Size)),
				StorageClass: optional(v.StorageClass),
			}
			if v.Version != nil {
				node.VersionID = ptr(v.Version.VersionID)
				node.IsLatest = ptr(btoa(v.Version.IsLatest))
			}
			doc.Entries = append(doc.Entries, node)
		case item.DeleteMarker != nil:
			m := item.DeleteMarker
			node := versionNodeXML{
				XMLName:   xml.Name{Local: elemDeleteMarker},
				Key:       ptr(m.Key),
				VersionID: optional(m.VersionID),
			}
			if m.IsLatest != nil {
				node.IsLatest = ptr(btoa(*m.IsLatest))
			}
			if m.LastModified != nil {
				node.LastModified = ptr(FormatTime(*m.LastModified))
			}
			if m.Owner != nil {
				node.Owner = &ownerXML{ID: m.Owner.ID, DisplayName: m.Owner.DisplayName}
			}
			doc.Entries = append(doc.Entries, node)
		}
	}
	return marshal(doc)
}
