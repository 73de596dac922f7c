package formal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Document is the generic form of a Snapshot, as exchanged with the formal
// model tooling. Numbers are held as json.Number so uint64 values survive.
type Document map[string]interface{}

type kind int

const (
	kindString kind = iota + 1
	kindNumber
	kindBool
	kindObject
	kindArray
)

func (k kind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindNumber:
		return "number"
	case kindBool:
		return "bool"
	case kindObject:
		return "object"
	case kindArray:
		return "array"
	default:
		return "null"
	}
}

// field describes one required document entry. Object fields list the
// entries they require in turn.
type field struct {
	name     string
	kind     kind
	nullable bool
	fields   []field
}

func str(name string) field { return field{name: name, kind: kindString} }

func num(name string) field { return field{name: name, kind: kindNumber} }

func array(name string) field { return field{name: name, kind: kindArray} }

func object(name string, fields ...field) field {
	return field{name: name, kind: kindObject, fields: fields}
}

var documentSchema = []field{
	str("schemaVersion"),
	num("validatorId"),
	num("clock"),
	{name: "benchmarkStartTime", kind: kindNumber, nullable: true},
	str("systemState"),
	object("componentHealth",
		str("voting"),
		str("dissemination"),
		str("transport"),
		str("crypto"),
	),
	array("interactionLog"),
	object("performanceMetrics",
		num("throughput"),
		num("latency"),
		num("bandwidth"),
		num("certificateRate"),
		num("repairRate"),
		num("messagesProcessed"),
		num("failedOperations"),
	),
	array("integrationErrors"),
	object("votorState",
		num("currentView"),
		array("votingRounds"),
		array("finalizedChain"),
		array("generatedCertificates"),
		num("clock"),
	),
	object("rotorState",
		object("blockShreds"),
		array("repairRequests"),
		object("bandwidthUsage"),
		num("bandwidthLimit"),
		num("deliveredBlocks"),
		num("clock"),
	),
	object("networkState",
		num("clock"),
		array("messageQueue"),
		object("messageBuffer"),
		array("networkPartitions"),
		num("droppedMessages"),
		array("byzantineNodes"),
	),
	object("configuration",
		num("validators"),
		num("gst"),
		num("delta"),
		num("maxBlockSize"),
		num("bandwidthLimit"),
	),
}

// Encode converts a snapshot into its document form.
func Encode(snap *Snapshot) (Document, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("could not encode snapshot: %w", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("could not decode encoded snapshot: %w", err)
	}
	return doc, nil
}

// ParseDocument reads a JSON document.
func ParseDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	err := dec.Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode is the strict inverse of Encode. Every required entry must be
// present with the expected type; unknown entries are ignored. All problems
// found are reported together in an ImportError.
func Decode(doc Document) (*Snapshot, error) {
	errs := checkFields(doc, documentSchema, "", nil)
	if errs != nil {
		return nil, newImportError(errs)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, newImportError(multierror.Append(nil, fmt.Errorf("could not re-encode document: %w", err)))
	}
	var snap Snapshot
	err = json.Unmarshal(data, &snap)
	if err != nil {
		return nil, newImportError(multierror.Append(nil, err))
	}
	if snap.SchemaVersion != SchemaVersion {
		return nil, newImportError(multierror.Append(nil,
			fmt.Errorf("schemaVersion: expected %q, got %q", SchemaVersion, snap.SchemaVersion)))
	}
	return &snap, nil
}

func checkFields(obj map[string]interface{}, fields []field, prefix string, errs *multierror.Error) *multierror.Error {
	for _, f := range fields {
		path := f.name
		if prefix != "" {
			path = prefix + "." + f.name
		}
		value, ok := obj[f.name]
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%s: missing", path))
			continue
		}
		actual := kindOf(value)
		if actual == 0 && f.nullable {
			continue
		}
		if actual != f.kind {
			errs = multierror.Append(errs, fmt.Errorf("%s: expected %s, got %s", path, f.kind, actual))
			continue
		}
		if f.kind == kindObject && len(f.fields) > 0 {
			child, ok := value.(map[string]interface{})
			if !ok {
				child = value.(Document)
			}
			errs = checkFields(child, f.fields, path, errs)
		}
	}
	return errs
}

func kindOf(v interface{}) kind {
	switch v.(type) {
	case string:
		return kindString
	case json.Number, float64:
		return kindNumber
	case bool:
		return kindBool
	case map[string]interface{}, Document:
		return kindObject
	case []interface{}:
		return kindArray
	default:
		return 0
	}
}
