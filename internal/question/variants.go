package question

import "math"

// MultipleChoice is correct when the chosen option equals the designated one.
type MultipleChoice struct {
	Prompt  string   `json:"pergunta" bson:"pergunta"`
	Options []string `json:"opcoes" bson:"opcoes"`
	Correct string   `json:"correta" bson:"correta"`
	Subtype string   `json:"subtipo,omitempty" bson:"subtipo,omitempty"`
}

func (q *MultipleChoice) Kind() Kind { return KindMultipleChoice }

func (q *MultipleChoice) Grade(a Answer) bool {
	return a.Choice != "" && a.Choice == q.Correct
}

func (q *MultipleChoice) View() View {
	return View{Kind: q.Kind().String(), Subtype: q.Subtype, Prompt: q.Prompt, Options: q.Options}
}

// TrueFalse is correct when the chosen truth value equals the designated one.
type TrueFalse struct {
	Statement string `json:"afirmativa" bson:"afirmativa"`
	Correct   bool   `json:"correta" bson:"correta"`
	Subtype   string `json:"subtipo,omitempty" bson:"subtipo,omitempty"`
}

func (q *TrueFalse) Kind() Kind { return KindTrueFalse }

func (q *TrueFalse) Grade(a Answer) bool {
	return a.Truth != nil && *a.Truth == q.Correct
}

func (q *TrueFalse) View() View {
	return View{Kind: q.Kind().String(), Subtype: q.Subtype, Prompt: q.Statement}
}

// Timeline asks the learner to place periods in chronological order.
type Timeline struct {
	Instruction  string   `json:"instrucao" bson:"instrucao"`
	Periods      []Item   `json:"periodos" bson:"periodos"`
	CorrectOrder []string `json:"ordemCorreta" bson:"ordemCorreta"`
}

func (q *Timeline) Kind() Kind { return KindTimeline }

func (q *Timeline) Grade(a Answer) bool {
	return sameSequence(a.Sequence, q.CorrectOrder)
}

func (q *Timeline) View() View {
	return View{Kind: q.Kind().String(), Prompt: q.Instruction, Items: q.Periods, Blanks: len(q.CorrectOrder)}
}

// ShortAnswer expects a single word or phrase; listed keywords are accepted
// as synonyms.
type ShortAnswer struct {
	Prompt   string   `json:"pergunta" bson:"pergunta"`
	Expected string   `json:"respostaEsperada" bson:"respostaEsperada"`
	Synonyms []string `json:"palavras-chave,omitempty" bson:"palavras-chave,omitempty"`
}

func (q *ShortAnswer) Kind() Kind { return KindShortAnswer }

func (q *ShortAnswer) Grade(a Answer) bool {
	given := Normalize(a.Text)
	if given == "" {
		return false
	}
	if given == Normalize(q.Expected) {
		return true
	}
	for _, synonym := range q.Synonyms {
		if given == Normalize(synonym) {
			return true
		}
	}
	return false
}

func (q *ShortAnswer) View() View {
	return View{Kind: q.Kind().String(), Prompt: q.Prompt}
}

// Essay is graded by keyword coverage of a free-form text.
type Essay struct {
	Prompt   string   `json:"pergunta" bson:"pergunta"`
	Keywords []string `json:"palavras-chave,omitempty" bson:"palavras-chave,omitempty"`
	Minimum  int      `json:"minimo,omitempty" bson:"minimo,omitempty"`
}

func (q *Essay) Kind() Kind { return KindEssay }

// RequiredKeywords is the minimum number of keywords an answer must contain.
func (q *Essay) RequiredKeywords() int {
	if q.Minimum > 0 {
		return q.Minimum
	}
	return int(math.Ceil(float64(len(q.Keywords)) / 2))
}

func (q *Essay) Grade(a Answer) bool {
	text := Normalize(a.Text)
	if text == "" {
		return false
	}
	found := 0
	for _, keyword := range q.Keywords {
		if containsFold(text, keyword) {
			found++
		}
	}
	return found >= q.RequiredKeywords()
}

func (q *Essay) View() View {
	return View{Kind: q.Kind().String(), Prompt: q.Prompt}
}

// Blank is a gap in a fill-in text. Correct defaults to the blank's own id.
type Blank struct {
	ID       string `json:"id" bson:"id"`
	Position int    `json:"posicao" bson:"posicao"`
	Correct  string `json:"correta,omitempty" bson:"correta,omitempty"`
}

func (b Blank) correctID() string {
	if b.Correct != "" {
		return b.Correct
	}
	return b.ID
}

// FillBlanks asks the learner to assign a word to every "____" gap.
type FillBlanks struct {
	Text   string  `json:"texto" bson:"texto"`
	Blanks []Blank `json:"ordem" bson:"ordem"`
	Words  []Item  `json:"palavras" bson:"palavras"`
}

func (q *FillBlanks) Kind() Kind { return KindFillBlanks }

func (q *FillBlanks) Grade(a Answer) bool {
	if len(q.Blanks) == 0 {
		return false
	}
	for _, blank := range q.Blanks {
		if a.Blanks[blank.ID] != blank.correctID() {
			return false
		}
	}
	return true
}

func (q *FillBlanks) View() View {
	return View{Kind: q.Kind().String(), Prompt: q.Text, Items: q.Words, Blanks: len(q.Blanks)}
}

// Pair links a left-column item to its right-column match.
type Pair struct {
	Item    string `json:"item" bson:"item"`
	Correct string `json:"correto" bson:"correto"`
}

// MatchColumns gives no partial credit: every pair must be matched correctly.
type MatchColumns struct {
	Prompt  string   `json:"pergunta" bson:"pergunta"`
	Options []string `json:"opcoes" bson:"opcoes"`
	Pairs   []Pair   `json:"pares" bson:"pares"`
}

func (q *MatchColumns) Kind() Kind { return KindMatchColumns }

func (q *MatchColumns) Grade(a Answer) bool {
	if len(q.Pairs) == 0 {
		return false
	}
	for _, pair := range q.Pairs {
		matched, ok := a.Pairs[pair.Item]
		if !ok || matched != pair.Correct {
			return false
		}
	}
	return true
}

func (q *MatchColumns) View() View {
	seen := make(map[string]struct{}, len(q.Pairs))
	items := make([]Item, 0, len(q.Pairs))
	for _, pair := range q.Pairs {
		if _, ok := seen[pair.Item]; ok {
			continue
		}
		seen[pair.Item] = struct{}{}
		items = append(items, Item{ID: pair.Item, Text: pair.Item})
	}
	return View{Kind: q.Kind().String(), Prompt: q.Prompt, Options: q.Options, Items: items}
}

// DragOrder asks the learner to drag items into the correct order.
type DragOrder struct {
	Instruction  string   `json:"instrucao" bson:"instrucao"`
	Items        []Item   `json:"itens" bson:"itens"`
	CorrectOrder []string `json:"ordemCorreta" bson:"ordemCorreta"`
}

func (q *DragOrder) Kind() Kind { return KindDragOrder }

func (q *DragOrder) Grade(a Answer) bool {
	return sameSequence(a.Sequence, q.CorrectOrder)
}

func (q *DragOrder) View() View {
	return View{Kind: q.Kind().String(), Prompt: q.Instruction, Items: q.Items}
}

// ClassifyColumns assigns every item to a column; CorrectColumns is
// positional with Items.
type ClassifyColumns struct {
	Prompt         string   `json:"pergunta" bson:"pergunta"`
	Items          []string `json:"itens" bson:"itens"`
	CorrectColumns []string `json:"ordemCorreta" bson:"ordemCorreta"`
	Subtype        string   `json:"subtipo,omitempty" bson:"subtipo,omitempty"`
}

const subtypeThreeColumns = "trescolunas"

func (q *ClassifyColumns) Kind() Kind { return KindClassifyColumns }

func (q *ClassifyColumns) Grade(a Answer) bool {
	if len(q.Items) == 0 || len(q.CorrectColumns) < len(q.Items) {
		return false
	}
	for i, item := range q.Items {
		if a.Columns[item] != q.CorrectColumns[i] {
			return false
		}
	}
	return true
}

// Columns lists the distinct column names offered to the learner.
func (q *ClassifyColumns) Columns() []string {
	limit := 2
	if q.Subtype == subtypeThreeColumns {
		limit = 3
	}
	seen := make(map[string]struct{})
	columns := make([]string, 0, limit)
	for _, column := range q.CorrectColumns {
		if _, ok := seen[column]; ok {
			continue
		}
		seen[column] = struct{}{}
		columns = append(columns, column)
		if len(columns) == limit {
			break
		}
	}
	return columns
}

func (q *ClassifyColumns) View() View {
	items := make([]Item, len(q.Items))
	for i, item := range q.Items {
		items[i] = Item{ID: item, Text: item}
	}
	return View{Kind: q.Kind().String(), Subtype: q.Subtype, Prompt: q.Prompt, Items: items, Columns: q.Columns()}
}

func sameSequence(got, want []string) bool {
	if len(want) == 0 || len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
