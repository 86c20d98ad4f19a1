package processing

import (
	"math"
	"strings"
	"unicode"
)

// Sentiment holds the polarity scores for one piece of text. Neg, Neu
// and Pos are proportions summing to one, Compound is normalized to
// the range [-1, 1].
type Sentiment struct {
	Neg      float64 `json:"neg"`
	Neu      float64 `json:"neu"`
	Pos      float64 `json:"pos"`
	Compound float64 `json:"compound"`
}

// Analyzer scores the sentiment of post text. Implementations must be
// safe for concurrent use.
type Analyzer interface {
	Score(text string) Sentiment
}

// LexiconAnalyzer is a valence-lexicon sentiment scorer. Construct it
// once and share it; the lexicon is immutable after construction.
type LexiconAnalyzer struct {
	lexicon map[string]float64
}

// negations flip the valence of the following scored word.
var negations = map[string]bool{
	"not": true, "no": true, "never": true, "neither": true,
	"nobody": true, "nothing": true, "cannot": true, "cant": true,
	"dont": true, "wont": true, "isnt": true, "wasnt": true,
	"shouldnt": true, "wouldnt": true, "couldnt": true, "didnt": true,
	"doesnt": true, "aint": true, "without": true,
}

// boosters scale the valence of the following scored word.
var boosters = map[string]float64{
	"very": 0.293, "really": 0.293, "extremely": 0.293, "absolutely": 0.293,
	"completely": 0.293, "totally": 0.293, "incredibly": 0.293, "so": 0.293,
	"slightly": -0.293, "somewhat": -0.293, "barely": -0.293, "hardly": -0.293,
	"kind": -0.293, "kinda": -0.293, "sort": -0.293,
}

// NewLexiconAnalyzer builds an analyzer with the built-in valence
// lexicon.
func NewLexiconAnalyzer() *LexiconAnalyzer {
	return &LexiconAnalyzer{lexicon: defaultLexicon}
}

// Score computes polarity scores for text. Empty or unscorable text
// comes back fully neutral.
func (a *LexiconAnalyzer) Score(text string) Sentiment {
	words := tokenize(text)
	if len(words) == 0 {
		return Sentiment{Neu: 1}
	}

	var valences []float64
	for i, word := range words {
		valence, ok := a.lexicon[word]
		if !ok {
			valences = append(valences, 0)
			continue
		}

		// Look back up to two words for negations and boosters.
		for back := 1; back <= 2 && i-back >= 0; back++ {
			prev := words[i-back]
			if negations[prev] {
				valence *= -0.74
			} else if boost, ok := boosters[prev]; ok {
				if valence > 0 {
					valence += boost
				} else {
					valence -= boost
				}
			}
		}
		valences = append(valences, valence)
	}

	var sum, posSum, negSum float64
	var neuCount int
	for _, v := range valences {
		sum += v
		switch {
		case v > 0:
			posSum += v + 1
		case v < 0:
			negSum += math.Abs(v) + 1
		default:
			neuCount++
		}
	}

	total := posSum + negSum + float64(neuCount)
	s := Sentiment{Compound: normalize(sum)}
	if total > 0 {
		s.Pos = round3(posSum / total)
		s.Neg = round3(negSum / total)
		s.Neu = round3(float64(neuCount) / total)
	} else {
		s.Neu = 1
	}
	return s
}

// normalize maps an unbounded valence sum into [-1, 1].
func normalize(sum float64) float64 {
	norm := sum / math.Sqrt(sum*sum+15)
	return round4(norm)
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// tokenize lowercases and splits text into letter runs, dropping
// apostrophes so contractions match lexicon entries.
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\'' {
			return -1
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	return strings.Fields(cleaned)
}

// defaultLexicon carries per-word valences on the VADER scale of
// roughly -4 to +4.
var defaultLexicon = map[string]float64{
	"good": 1.9, "great": 3.1, "excellent": 2.7, "amazing": 2.8,
	"awesome": 3.1, "fantastic": 2.6, "wonderful": 2.7, "best": 3.2,
	"love": 3.2, "loved": 2.9, "loves": 2.7, "like": 1.5, "likes": 1.5,
	"liked": 1.8, "happy": 2.7, "joy": 2.8, "glad": 2.2, "nice": 1.8,
	"beautiful": 2.9, "brilliant": 2.8, "perfect": 2.7, "win": 2.8,
	"winner": 2.8, "winning": 2.4, "success": 2.7, "successful": 2.6,
	"thanks": 1.9, "thank": 1.5, "grateful": 2.3, "appreciate": 2.0,
	"fun": 2.3, "funny": 1.9, "cool": 1.3, "excited": 2.2,
	"exciting": 2.2, "impressive": 2.3, "proud": 2.1, "hope": 1.9,
	"hopeful": 2.0, "safe": 1.9, "support": 1.7, "supported": 1.6,
	"free": 1.7, "freedom": 2.3, "peace": 2.5, "peaceful": 2.2,
	"strong": 2.3, "better": 1.9, "improved": 2.1, "improvement": 1.8,
	"recommend": 1.6, "recommended": 1.5, "helpful": 1.8, "help": 1.7,
	"smart": 1.7, "clever": 1.9, "easy": 1.6, "congratulations": 2.9,

	"bad": -2.5, "terrible": -2.1, "horrible": -2.5, "awful": -2.0,
	"worst": -3.1, "hate": -2.7, "hated": -2.9, "hates": -1.9,
	"sad": -2.1, "unhappy": -1.8, "angry": -2.3, "anger": -2.0,
	"mad": -2.0, "furious": -2.6, "disappointed": -2.1,
	"disappointing": -2.2, "fail": -2.5, "failed": -2.3, "failure": -2.2,
	"failing": -2.2, "lose": -1.9, "loser": -2.4, "losing": -1.8,
	"lost": -1.3, "wrong": -2.1, "broken": -1.8, "break": -1.5,
	"problem": -1.7, "problems": -1.7, "issue": -1.1, "issues": -1.2,
	"worried": -1.6, "worry": -1.6, "fear": -2.2, "afraid": -2.0,
	"scared": -2.2, "scary": -2.2, "danger": -2.4, "dangerous": -2.4,
	"threat": -2.4, "threats": -2.3, "attack": -2.1, "attacked": -2.2,
	"violence": -3.1, "violent": -2.9, "war": -2.9, "crisis": -2.5,
	"disaster": -3.1, "dead": -3.3, "death": -2.9, "die": -2.9,
	"killed": -3.4, "kill": -3.7, "hurt": -2.4, "pain": -2.3,
	"painful": -2.2, "sick": -2.2, "disgusting": -2.9, "ugly": -2.3,
	"stupid": -2.4, "dumb": -2.3, "annoying": -1.8, "boring": -1.3,
	"useless": -1.8, "waste": -1.8, "scam": -2.6, "fraud": -2.8,
	"fake": -2.1, "lie": -2.4, "lies": -2.2, "liar": -2.7,
	"corrupt": -2.7, "crime": -2.5, "criminal": -2.6, "illegal": -2.2,
	"ban": -2.0, "banned": -2.1, "blocked": -1.4, "abuse": -3.2,
	"abusive": -3.0, "toxic": -2.5, "harass": -2.7, "harassment": -2.7,
}
