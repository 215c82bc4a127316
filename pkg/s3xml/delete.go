package s3xml

import (
	"encoding/xml"
	"fmt"

	"github.com/3leaps/s3keeper/pkg/provider"
)

type deleteRequestXML struct {
	XMLName xml.Name              `xml:"Delete"`
	Xmlns   string                `xml:"xmlns,attr,omitempty"`
	Quiet   *string               `xml:"Quiet,omitempty"`
	Objects []objectIdentifierXML `xml:"Object"`
}

type objectIdentifierXML struct {
	Key       *string `xml:"Key"`
	VersionID *string `xml:"VersionId,omitempty"`
	Raw       string  `xml:",innerxml"`
}

type deleteResultXML struct {
	XMLName xml.Name           `xml:"DeleteResult"`
	Xmlns   string             `xml:"xmlns,attr,omitempty"`
	Deleted []deletedObjectXML `xml:"Deleted"`
	Errors  []deleteErrorXML   `xml:"Error"`
}

type deletedObjectXML struct {
	Key                   *string `xml:"Key"`
	VersionID             *string `xml:"VersionId,omitempty"`
	DeleteMarker          *string `xml:"DeleteMarker,omitempty"`
	DeleteMarkerVersionID *string `xml:"DeleteMarkerVersionId,omitempty"`
	Raw                   string  `xml:",innerxml"`
}

type deleteErrorXML struct {
	Key       *string `xml:"Key"`
	VersionID *string `xml:"VersionId,omitempty"`
	Code      *string `xml:"Code"`
	Message   *string `xml:"Message,omitempty"`
	Raw       string  `xml:",innerxml"`
}

// EncodeDeleteRequest renders a multi-delete request body.
//
// Quiet is only written when true. VersionId is only written for
// identifiers that carry one.
func EncodeDeleteRequest(ids []provider.ObjectIdentifier, quiet bool) ([]byte, error) {
	if err := CheckIdentifiers(ids); err != nil {
		return nil, err
	}

	doc := deleteRequestXML{
		Xmlns:   Namespace,
		Objects: make([]objectIdentifierXML, 0, len(ids)),
	}
	if quiet {
		doc.Quiet = ptr("true")
	}
	for _, id := range ids {
		doc.Objects = append(doc.Objects, objectIdentifierXML{
			Key:       ptr(id.Key),
			VersionID: optional(id.VersionID),
		})
	}
	return marshal(doc)
}

// CheckIdentifiers rejects identifiers that cannot be written to a
// multi-delete body unchanged.
func CheckIdentifiers(ids []provider.ObjectIdentifier) error {
	for i, id := range ids {
		if !ValidText(id.Key) {
			return &InvalidNodeError{
				Field:  "Object.Key",
				Reason: fmt.Sprintf("identifier %d is not representable in XML: %q", i, id.Key),
			}
		}
		if !ValidText(id.VersionID) {
			return &InvalidNodeError{
				Field:  "Object.VersionId",
				Reason: fmt.Sprintf("identifier %d is not representable in XML: %q", i, id.VersionID),
			}
		}
	}
	return nil
}

// DecodeDeleteRequest parses a multi-delete request body.
func DecodeDeleteRequest(data []byte) ([]provider.ObjectIdentifier, bool, error) {
	var doc deleteRequestXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, false, syntaxError("Delete", err)
	}

	root := &fieldReader{parent: "Delete"}
	quiet := false
	if doc.Quiet != nil {
		quiet = root.boolean("Quiet", doc.Quiet)
	}
	if root.err != nil {
		return nil, false, root.err
	}

	ids := make([]provider.ObjectIdentifier, 0, len(doc.Objects))
	for _, o := range doc.Objects {
		r := &fieldReader{parent: "Object", node: o.Raw}
		id := provider.ObjectIdentifier{
			Key:       r.required("Key", o.Key),
			VersionID: deref(o.VersionID),
		}
		if r.err != nil {
			return nil, false, r.err
		}
		ids = append(ids, id)
	}
	return ids, quiet, nil
}

// DecodeDeleteResult parses a multi-delete response body.
func DecodeDeleteResult(data []byte) (*provider.DeleteResult, error) {
	var doc deleteResultXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, syntaxError("DeleteResult", err)
	}

	result := &provider.DeleteResult{
		Deleted: make([]provider.ObjectIdentifier, 0, len(doc.Deleted)),
	}
	for _, d := range doc.Deleted {
		r := &fieldReader{parent: "Deleted", node: d.Raw}
		id := provider.ObjectIdentifier{
			Key:       r.required("Key", d.Key),
			VersionID: deref(d.VersionID),
		}
		if r.err != nil {
			return nil, r.err
		}
		result.Deleted = append(result.Deleted, id)
	}
	for _, e := range doc.Errors {
		r := &fieldReader{parent: "Error", node: e.Raw}
		de := provider.DeleteError{
			Key:       r.required("Key", e.Key),
			VersionID: deref(e.VersionID),
			Code:      r.required("Code", e.Code),
			Message:   deref(e.Message),
		}
		if r.err != nil {
			return nil, r.err
		}
		result.Errors = append(result.Errors, de)
	}
	return result, nil
}

// EncodeDeleteResult renders a multi-delete response body.
func EncodeDeleteResult(result *provider.DeleteResult) ([]byte, error) {
	doc := deleteResultXML{Xmlns: Namespace}
	for _, d := range result.Deleted {
		doc.Deleted = append(doc.Deleted, deletedObjectXML{
			Key:       ptr(d.Key),
			VersionID: optional(d.VersionID),
		})
	}
	for _, e := range result.Errors {
		doc.Errors = append(doc.Errors, deleteErrorXML{
			Key:       ptr(e.Key),
			VersionID: optional(e.VersionID),
			Code:      ptr(e.Code),
			Message:   optional(e.Message),
		})
	}
	return marshal(doc)
}
