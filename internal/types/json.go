package types

import (
	"encoding/json"
	"fmt"
)

// Serialization uses a tagged envelope for the two closed sums (Content and
// Question) so that a state checkpoint round-trips losslessly: the kind tag
// selects the concrete type on decode, and decode of an unknown tag fails
// loudly instead of degrading to a map.

type envelope struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// EncodeContent serializes any move content under its kind tag.
func EncodeContent(c Content) (json.RawMessage, error) {
	if c == nil {
		return nil, nil
	}
	value, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s content: %w", c.kind(), err)
	}
	return json.Marshal(envelope{Kind: c.kind(), Value: value})
}

// DecodeContent reverses EncodeContent.
func DecodeContent(data json.RawMessage) (Content, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode content envelope: %w", err)
	}
	switch env.Kind {
	case "text":
		var t Text
		err := json.Unmarshal(env.Value, &t)
		return t, err
	case "prop":
		var p Proposition
		err := json.Unmarshal(env.Value, &p)
		return p, err
	case "icm":
		var i ICM
		err := json.Unmarshal(env.Value, &i)
		return i, err
	case "answer":
		var a Answer
		err := json.Unmarshal(env.Value, &a)
		return a, err
	case "wh", "yn", "alt":
		return decodeQuestionKind(env.Kind, env.Value)
	default:
		return nil, fmt.Errorf("unknown content kind %q", env.Kind)
	}
}

// EncodeQuestion serializes a question under its kind tag.
func EncodeQuestion(q Question) (json.RawMessage, error) {
	if q == nil {
		return nil, nil
	}
	return EncodeContent(q)
}

// DecodeQuestion reverses EncodeQuestion.
func DecodeQuestion(data json.RawMessage) (Question, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	c, err := DecodeContent(data)
	if err != nil {
		return nil, err
	}
	q, ok := c.(Question)
	if !ok {
		return nil, fmt.Errorf("content is not a question")
	}
	return q, nil
}

func decodeQuestionKind(kind string, value json.RawMessage) (Question, error) {
	switch kind {
	case "wh":
		var q WhQuestion
		err := json.Unmarshal(value, &q)
		return q, err
	case "yn":
		var q YNQuestion
		err := json.Unmarshal(value, &q)
		return q, err
	case "alt":
		var q AltQuestion
		err := json.Unmarshal(value, &q)
		return q, err
	default:
		return nil, fmt.Errorf("unknown question kind %q", kind)
	}
}

type answerJSON struct {
	Prop  Proposition     `json:"prop"`
	About json.RawMessage `json:"about,omitempty"`
}

// MarshalJSON serializes the answer with its optional target question.
func (a Answer) MarshalJSON() ([]byte, error) {
	about, err := EncodeQuestion(a.About)
	if err != nil {
		return nil, err
	}
	return json.Marshal(answerJSON{Prop: a.Prop, About: about})
}

// UnmarshalJSON reverses MarshalJSON.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var aj answerJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}
	about, err := DecodeQuestion(aj.About)
	if err != nil {
		return err
	}
	a.Prop = aj.Prop
	a.About = about
	return nil
}

type moveJSON struct {
	ID                 string          `json:"id"`
	Speaker            Speaker         `json:"speaker"`
	Type               MoveType        `json:"type"`
	Content            json.RawMessage `json:"content,omitempty"`
	Confidence         float64         `json:"confidence"`
	Grounding          GroundingStatus `json:"grounding"`
	NeedsReutterance   bool            `json:"needs_reutterance,omitempty"`
	NeedsClarification bool            `json:"needs_clarification,omitempty"`
	Alternatives       []Proposition   `json:"alternatives,omitempty"`
}

// MarshalJSON serializes the move with its content envelope.
func (m *Move) MarshalJSON() ([]byte, error) {
	content, err := EncodeContent(m.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(moveJSON{
		ID:                 m.ID,
		Speaker:            m.Speaker,
		Type:               m.Type,
		Content:            content,
		Confidence:         m.Confidence,
		Grounding:          m.Grounding,
		NeedsReutterance:   m.NeedsReutterance,
		NeedsClarification: m.NeedsClarification,
		Alternatives:       m.Alternatives,
	})
}

// UnmarshalJSON reverses MarshalJSON.
func (m *Move) UnmarshalJSON(data []byte) error {
	var mj moveJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return err
	}
	content, err := DecodeContent(mj.Content)
	if err != nil {
		return err
	}
	m.ID = mj.ID
	m.Speaker = mj.Speaker
	m.Type = mj.Type
	m.Content = content
	m.Confidence = mj.Confidence
	m.Grounding = mj.Grounding
	m.NeedsReutterance = mj.NeedsReutterance
	m.NeedsClarification = mj.NeedsClarification
	m.Alternatives = mj.Alternatives
	return nil
}

type planJSON struct {
	Type     PlanType        `json:"type"`
	Question json.RawMessage `json:"question,omitempty"`
	Action   *Action         `json:"action,omitempty"`
	Status   PlanStatus      `json:"status"`
	Subplans []*Plan         `json:"subplans,omitempty"`
}

// MarshalJSON serializes the plan tree, preserving subplan order.
func (p *Plan) MarshalJSON() ([]byte, error) {
	question, err := EncodeQuestion(p.Question)
	if err != nil {
		return nil, err
	}
	return json.Marshal(planJSON{
		Type:     p.Type,
		Question: question,
		Action:   p.Action,
		Status:   p.Status,
		Subplans: p.Subplans,
	})
}

// UnmarshalJSON reverses MarshalJSON.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var pj planJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	question, err := DecodeQuestion(pj.Question)
	if err != nil {
		return err
	}
	p.Type = pj.Type
	p.Question = question
	p.Action = pj.Action
	p.Status = pj.Status
	p.Subplans = pj.Subplans
	return nil
}
