package timeline

import "strings"

// Emotion is one of the controlled emotion labels.
type Emotion string

const (
	Calm      Emotion = "calm"
	Sad       Emotion = "sad"
	Dark      Emotion = "dark"
	Romantic  Emotion = "romantic"
	Hopeful   Emotion = "hopeful"
	Energetic Emotion = "energetic"
	Euphoric  Emotion = "euphoric"
	Neutral   Emotion = "neutral"
)

// Emotions lists the controlled vocabulary.
var Emotions = []Emotion{Calm, Sad, Dark, Romantic, Hopeful, Energetic, Euphoric, Neutral}

var defaultColors = map[Emotion]RGB{
	Calm:      mustHex("#6CC0FF"),
	Sad:       mustHex("#2B3A67"),
	Dark:      mustHex("#0B0B0B"),
	Romantic:  mustHex("#FF6FA3"),
	Hopeful:   mustHex("#FFD166"),
	Energetic: mustHex("#FF7F11"),
	Euphoric:  mustHex("#9B5DE5"),
	Neutral:   mustHex("#808080"),
}

// ParseEmotion lower-cases label and reports whether it is controlled.
func ParseEmotion(label string) (Emotion, bool) {
	e := Emotion(strings.ToLower(strings.TrimSpace(label)))
	return e, e.Valid()
}

// Valid reports whether e is in the controlled vocabulary.
func (e Emotion) Valid() bool {
	_, ok := defaultColors[e]
	return ok
}

// DefaultColor is the fallback color when a segment has none.
func (e Emotion) DefaultColor() RGB {
	if c, ok := defaultColors[e]; ok {
		return c
	}
	return defaultColors[Neutral]
}

var classifierRules = []struct {
	emotion Emotion
	stems   []string
}{
	{Romantic, []string{"love", "romance", "heart"}},
	{Hopeful, []string{"hope", "dream", "aspir"}},
	{Energetic, []string{"dance", "run", "drive", "energy", "rush"}},
	{Euphoric, []string{"happy", "joy", "euphor"}},
	{Sad, []string{"sad", "tears", "cry", "lonely", "melanch"}},
	{Dark, []string{"dark", "shadow", "nightmare"}},
	{Calm, []string{"calm", "quiet", "gentle", "soft"}},
}

// ClassifyText maps free text to an emotion by substring keywords. Rules
// are checked in order and the first hit wins.
func ClassifyText(text string) Emotion {
	t := strings.ToLower(text)
	for _, rule := range classifierRules {
		for _, stem := range rule.stems {
			if strings.Contains(t, stem) {
				return rule.emotion
			}
		}
	}
	return Neutral
}
