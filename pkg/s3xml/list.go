package s3xml

import (
	"encoding/xml"

	"github.com/3leaps/s3keeper/pkg/provider"
)

type listBucketResultXML struct {
	XMLName               xml.Name          `xml:"ListBucketResult"`
	Xmlns                 string            `xml:"xmlns,attr,omitempty"`
	Name                  *string           `xml:"Name"`
	Prefix                *string           `xml:"Prefix"`
	Delimiter             *string           `xml:"Delimiter,omitempty"`
	EncodingType          *string           `xml:"EncodingType,omitempty"`
	KeyCount              *string           `xml:"KeyCount,omitempty"`
	MaxKeys               *string           `xml:"MaxKeys,omitempty"`
	IsTruncated           *string           `xml:"IsTruncated"`
	ContinuationToken     *string           `xml:"ContinuationToken,omitempty"`
	NextContinuationToken *string           `xml:"NextContinuationToken,omitempty"`
	Contents              []contentXML      `xml:"Contents"`
	CommonPrefixes        []commonPrefixXML `xml:"CommonPrefixes"`
}

type contentXML struct {
	Key          *string `xml:"Key"`
	LastModified *string `xml:"LastModified"`
	ETag         *string `xml:"ETag,omitempty"`
	Size         *string `xml:"Size"`
	StorageClass *string `xml:"StorageClass,omitempty"`
	Raw          string  `xml:",innerxml"`
}

type commonPrefixXML struct {
	Prefix *string `xml:"Prefix"`
	Raw    string  `xml:",innerxml"`
}

// DecodeListBucketResult decodes a ListObjectsV2 response body.
//
// The continuation token and truncation flag are normalized as a pair: a
// page reports more results only when both are present. When the response
// carries EncodingType url, keys, prefixes and the delimiter are decoded.
func DecodeListBucketResult(data []byte) (*provider.PageResult, error) {
	var doc listBucketResultXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, syntaxError("ListBucketResult", err)
	}

	root := &fieldReader{parent: "ListBucketResult"}
	encoded := deref(doc.EncodingType) == EncodingURL
	delimiter := root.unescape("Delimiter", deref(doc.Delimiter), encoded)
	page := &provider.PageResult{
		Prefix:                root.unescape("Prefix", deref(doc.Prefix), encoded),
		Delimiter:             delimiter,
		NextContinuationToken: deref(doc.NextContinuationToken),
		Entries:               make([]provider.ObjectEntry, 0, len(doc.Contents)),
		Folders:               make([]provider.FolderPrefix, 0, len(doc.CommonPrefixes)),
	}
	if doc.IsTruncated != nil {
		page.IsTruncated = root.boolean("IsTruncated", doc.IsTruncated)
	}
	if root.err != nil {
		return nil, root.err
	}

	for _, c := range doc.Contents {
		r := &fieldReader{parent: "Contents", node: c.Raw}
		entry := provider.ObjectEntry{
			Key:          r.unescape("Key", r.required("Key", c.Key), encoded),
			Delimiter:    delimiter,
			ETag:         cleanETag(deref(c.ETag)),
			LastModified: r.timestamp("LastModified", c.LastModified),
			Size:         r.integer("Size", c.Size),
			StorageClass: deref(c.StorageClass),
		}
		if r.err != nil {
			return nil, r.err
		}
		page.Entries = append(page.Entries, entry)
	}

	for _, cp := range doc.CommonPrefixes {
		r := &fieldReader{parent: "CommonPrefixes", node: cp.Raw}
		prefix := r.unescape("Prefix", r.required("Prefix", cp.Prefix), encoded)
		if r.err != nil {
			return nil, r.err
		}
		page.Folders = append(page.Folders, provider.FolderPrefix{Prefix: prefix, Delimiter: delimiter})
	}

	page.NormalizeTruncation()
	return page, nil
}

// EncodeListBucketResult renders a page as a ListObjectsV2 response body.
func EncodeListBucketResult(bucket string, page *provider.PageResult) ([]byte, error) {
	doc := listBucketResultXML{
		Xmlns:       Namespace,
		Name:        ptr(bucket),
		Prefix:      ptr(page.Prefix),
		Delimiter:   optional(page.Delimiter),
		KeyCount:    ptr(itoa(len(page.Entries) + len(page.Folders))),
		IsTruncated: ptr(btoa(page.HasMore())),
	}
	if page.HasMore() {
		doc.NextContinuationToken = ptr(page.NextContinuationToken)
	}
	for _, e := range page.Entries {
		doc.Contents = append(doc.Contents, contentXML{
			Key:          ptr(e.Key),
			LastModified: ptr(FormatTime(e.LastModified)),
			ETag:         optional(quoteETag(e.ETag)),
			Size:         ptr(i64toa(e.Size)),
			StorageClass: optional(e.StorageClass),
		})
	}
	for _, f := range page.Folders {
		doc.CommonPrefixes = append(doc.CommonPrefixes, commonPrefixXML{Prefix: ptr(f.Prefix)})
	}
	return marshal(doc)
}
