package matcher

import "github.com/Gondolav/inventory-connector/config"

var englishStopWords = []string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "could", "did", "do", "does", "doing",
	"down", "during", "each", "few", "for", "from", "further", "had", "has", "have",
	"having", "he", "her", "here", "hers", "him", "his", "how", "i", "if", "in",
	"into", "is", "it", "its", "just", "me", "more", "most", "my", "no", "nor",
	"not", "now", "of", "off", "on", "once", "only", "or", "other", "our", "ours",
	"out", "over", "own", "same", "she", "should", "so", "some", "such", "than",
	"that", "the", "their", "theirs", "them", "then", "there", "these", "they",
	"this", "those", "through", "to", "too", "under", "until", "up", "very", "was",
	"we", "were", "what", "when", "where", "which", "while", "who", "whom", "why",
	"will", "with", "would", "you", "your", "yours",
}

var frenchStopWords = []string{
	"a", "à", "afin", "ai", "au", "aux", "avec", "avoir", "c", "ce", "ceci", "cela",
	"celle", "celles", "celui", "ces", "cet", "cette", "ceux", "chez", "d", "dans",
	"de", "des", "du", "elle", "elles", "en", "est", "et", "été", "être", "eu",
	"il", "ils", "j", "je", "l", "la", "le", "les", "leur", "leurs", "lui", "m",
	"ma", "mais", "me", "même", "mes", "moi", "mon", "n", "ne", "ni", "nos",
	"notre", "nous", "on", "ou", "où", "par", "pas", "pour", "qu", "que", "qui",
	"s", "sa", "sans", "se", "ses", "si", "son", "sont", "sous", "sur", "t", "ta",
	"te", "tes", "toi", "ton", "tu", "un", "une", "vos", "votre", "vous", "y",
}

// StopWords returns the stop word set for lang. Unknown languages get the
// English set.
func StopWords(lang config.Language) map[string]bool {
	words := englishStopWords
	if lang == config.LanguageFR {
		words = frenchStopWords
	}

	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
