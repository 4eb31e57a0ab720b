// Package question models the closed set of question variants an activity can
// carry, together with the grading rule of each variant.
package question

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrUnknownQuestionKind is returned when a stored question carries a type tag
// no variant handles.
var ErrUnknownQuestionKind = errors.New("unknown question kind")

// Kind identifies a question variant.
type Kind int

const (
	KindMultipleChoice Kind = iota + 1
	KindTrueFalse
	KindTimeline
	KindShortAnswer
	KindEssay
	KindFillBlanks
	KindMatchColumns
	KindDragOrder
	KindClassifyColumns
)

var kindNames = map[Kind]string{
	KindMultipleChoice:  "multiple-choice",
	KindTrueFalse:       "true-false",
	KindTimeline:        "timeline",
	KindShortAnswer:     "short-answer",
	KindEssay:           "essay",
	KindFillBlanks:      "fill-blanks",
	KindMatchColumns:    "match-columns",
	KindDragOrder:       "drag-order",
	KindClassifyColumns: "classify-columns",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Stored documents tag questions with these values. Free-text questions share
// one tag; the presence of an expected answer selects the short-answer variant.
const (
	tagMultipleChoice  = "multipla-escolha"
	tagTrueFalse       = "verdadeiro-falso"
	tagTimeline        = "linha-tempo"
	tagFreeText        = "discursiva"
	tagFillBlanks      = "preencher-lacunas"
	tagMatchColumns    = "associar-colunas"
	tagDragOrder       = "ordenar-lacunas"
	tagClassifyColumns = "classificar-colunas"
)

func (k Kind) tag() string {
	switch k {
	case KindMultipleChoice:
		return tagMultipleChoice
	case KindTrueFalse:
		return tagTrueFalse
	case KindTimeline:
		return tagTimeline
	case KindShortAnswer, KindEssay:
		return tagFreeText
	case KindFillBlanks:
		return tagFillBlanks
	case KindMatchColumns:
		return tagMatchColumns
	case KindDragOrder:
		return tagDragOrder
	case KindClassifyColumns:
		return tagClassifyColumns
	}
	return ""
}

// Body is implemented by every variant. Grade must not mutate the receiver.
// A question with nothing to answer never grades as correct.
type Body interface {
	Kind() Kind
	Grade(Answer) bool
	View() View
}

// Question is one entry of an activity.
type Question struct {
	Explanation string
	Body        Body
}

// Kind returns the variant of the question, or zero when the body is unset.
func (q Question) Kind() Kind {
	if q.Body == nil {
		return 0
	}
	return q.Body.Kind()
}

// Grade reports whether the answer is correct for this question.
func (q Question) Grade(a Answer) bool {
	if q.Body == nil {
		return false
	}
	return q.Body.Grade(a)
}

// View returns the question as shown to a learner, without its solution.
func (q Question) View() View {
	if q.Body == nil {
		return View{}
	}
	return q.Body.View()
}

// Answer is a learner's submission. Each variant reads only its own field;
// absent fields grade as incorrect.
type Answer struct {
	Choice   string            `json:"choice,omitempty"`
	Truth    *bool             `json:"truth,omitempty"`
	Sequence []string          `json:"sequence,omitempty"`
	Blanks   map[string]string `json:"blanks,omitempty"`
	Pairs    map[string]string `json:"pairs,omitempty"`
	Columns  map[string]string `json:"columns,omitempty"`
	Text     string            `json:"text,omitempty"`
}

// Item is a labelled piece a learner can place.
type Item struct {
	ID   string `json:"id" bson:"id"`
	Text string `json:"texto" bson:"texto"`
}

// View is the solution-free rendering of a question sent to clients.
type View struct {
	Kind    string   `json:"kind"`
	Subtype string   `json:"subtype,omitempty"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Items   []Item   `json:"items,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Blanks  int      `json:"blanks,omitempty"`
}

type envelope struct {
	Tag            string `json:"tipo" bson:"tipo"`
	Explanation    string `json:"explicacao,omitempty" bson:"explicacao,omitempty"`
	ExpectedAnswer string `json:"respostaEsperada,omitempty" bson:"respostaEsperada,omitempty"`
}

func decodeBody(env envelope, decode func(any) error) (Body, error) {
	var body Body
	switch env.Tag {
	case tagMultipleChoice:
		body = &MultipleChoice{}
	case tagTrueFalse:
		body = &TrueFalse{}
	case tagTimeline:
		body = &Timeline{}
	case tagFreeText:
		if env.ExpectedAnswer != "" {
			body = &ShortAnswer{}
		} else {
			body = &Essay{}
		}
	case tagFillBlanks:
		body = &FillBlanks{}
	case tagMatchColumns:
		body = &MatchColumns{}
	case tagDragOrder:
		body = &DragOrder{}
	case tagClassifyColumns:
		body = &ClassifyColumns{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestionKind, env.Tag)
	}
	if err := decode(body); err != nil {
		return nil, fmt.Errorf("decode %s question: %w", env.Tag, err)
	}
	return body, nil
}

// UnmarshalJSON decodes a stored question document.
func (q *Question) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	body, err := decodeBody(env, func(v any) error { return json.Unmarshal(data, v) })
	if err != nil {
		return err
	}
	q.Explanation = env.Explanation
	q.Body = body
	return nil
}

// MarshalJSON encodes the question in its stored document shape.
func (q Question) MarshalJSON() ([]byte, error) {
	if q.Body == nil {
		return nil, errors.New("question has no body")
	}
	raw, err := json.Marshal(q.Body)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(q.Body.Kind().tag())
	fields["tipo"] = tag
	if q.Explanation != "" {
		explanation, _ := json.Marshal(q.Explanation)
		fields["explicacao"] = explanation
	}
	return json.Marshal(fields)
}

// UnmarshalBSON decodes a question stored in the document database.
func (q *Question) UnmarshalBSON(data []byte) error {
	var env envelope
	if err := bson.Unmarshal(data, &env); err != nil {
		return err
	}
	body, err := decodeBody(env, func(v any) error { return bson.Unmarshal(data, v) })
	if err != nil {
		return err
	}
	q.Explanation = env.Explanation
	q.Body = body
	return nil
}

// MarshalBSON encodes the question for the document database.
func (q Question) MarshalBSON() ([]byte, error) {
	if q.Body == nil {
		return nil, errors.New("question has no body")
	}
	raw, err := bson.Marshal(q.Body)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc = append(bson.D{{Key: "tipo", Value: q.Body.Kind().tag()}}, doc...)
	if q.Explanation != "" {
		doc = append(doc, bson.E{Key: "explicacao", Value: q.Explanation})
	}
	return bson.Marshal(doc)
}
