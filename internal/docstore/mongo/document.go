package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/pkg/id"
)

// document is the stored BSON shape.
type document struct {
	ID       string `bson:"_id"`
	Class    string `bson:"t,omitempty"`
	Content  []byte `bson:"c,omitempty"`
	Metadata bson.M `bson:"m,omitempty"`
	Handled  bool   `bson:"h"`
}

func fromDocstore(d docstore.Document) document {
	out := document{ID: d.ID.String(), Class: d.Class, Content: d.Content, Handled: d.Handled}
	if len(d.Metadata) > 0 {
		out.Metadata = bson.M(d.Metadata)
	}
	return out
}

func (d document) toDocstore() (docstore.Document, error) {
	docID, err := id.Parse(d.ID)
	if err != nil {
		return docstore.Document{}, err
	}
	out := docstore.Document{ID: docID, Class: d.Class, Content: d.Content, Handled: d.Handled}
	if len(d.Metadata) > 0 {
		out.Metadata, _ = normalize(map[string]interface{}(d.Metadata)).(map[string]any)
	}
	return out, nil
}

// normalize turns driver container types into plain Go maps and slices, and
// every number into float64, so metadata reads back in the same JSON data
// model as the embedded backend.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalize(vv)
		}
		return out
	case primitive.M:
		return normalize(map[string]any(t))
	case primitive.D:
		return normalize(map[string]any(t.Map()))
	case primitive.A:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalize(vv)
		}
		return out
	case primitive.Binary:
		return t.Data
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// toFilter translates a docstore filter into a query document.
func toFilter(f docstore.Filter) bson.D {
	q := bson.D{}
	if f.ID != nil || f.AfterID != nil {
		cond := bson.D{}
		if f.ID != nil {
			cond = append(cond, bson.E{Key: "$eq", Value: f.ID.String()})
		}
		if f.AfterID != nil {
			cond = append(cond, bson.E{Key: "$gt", Value: f.AfterID.String()})
		}
		q = append(q, bson.E{Key: "_id", Value: cond})
	}
	if f.Handled != nil {
		q = append(q, bson.E{Key: "h", Value: *f.Handled})
	}
	if f.Class != "" {
		q = append(q, bson.E{Key: "t", Value: f.Class})
	}
	return q
}

var idOnlyProjection = bson.D{{Key: "_id", Value: 1}, {Key: "h", Value: 1}}

var naturalOrder = bson.D{{Key: "$natural", Value: 1}}
