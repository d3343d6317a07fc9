package scoring

import (
	"sort"
)

type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityImprovement Severity = "improvement"

	CriticalBelow    = 40
	ImprovementBelow = 70
	// WeakBelow selects the dimensions sent for generative suggestions.
	WeakBelow = 60
)

type Suggestion struct {
	Dimension string   `json:"dimension"`
	Severity  Severity `json:"severity"`
	Score     int      `json:"score"`
	Text      string   `json:"text"`
}

var templates = map[string]map[Severity]string{
	DimCoverage: {
		SeverityCritical:    "Il brand è presente su pochissime piattaforme: apri profili su LinkedIn, Medium e Substack e pubblica almeno tre contenuti su ciascuno.",
		SeverityImprovement: "Rafforza le piattaforme con meno di tre contenuti per trasformare una presenza debole in una presenza stabile.",
	},
	DimDepth: {
		SeverityCritical:    "I contenuti sono troppo brevi o privi di testo estraibile: punta ad articoli di almeno 1.500 parole con testo leggibile.",
		SeverityImprovement: "Approfondisci i contenuti esistenti aggiungendo dati, esempi e sezioni di approfondimento.",
	},
	DimFreshness: {
		SeverityCritical:    "Quasi nessun contenuto è recente: pianifica pubblicazioni regolari e aggiorna i contenuti più vecchi di un anno.",
		SeverityImprovement: "Aggiorna i contenuti pubblicati tra 6 e 12 mesi fa e mantieni un ritmo di pubblicazione costante.",
	},
	DimAuthority: {
		SeverityCritical:    "Mancano fonti autorevoli: cerca copertura su testate giornalistiche e pubblica su piattaforme editoriali.",
		SeverityImprovement: "Sposta parte della produzione verso canali più autorevoli come news, Substack e Medium.",
	},
	DimCoherence: {
		SeverityCritical:    "I contenuti non formano temi riconoscibili: definisci 3-5 argomenti chiave e collega ogni contenuto a uno di essi.",
		SeverityImprovement: "Consolida i temi con pochi contenuti e richiama con più costanza le entità principali del brand.",
	},
}

// Template returns the fixed text for a dimension at a severity.
func Template(dimension string, sev Severity) string {
	return templates[dimension][sev]
}

func severityOf(score int) (Severity, bool) {
	switch {
	case score < CriticalBelow:
		return SeverityCritical, true
	case score < ImprovementBelow:
		return SeverityImprovement, true
	}
	return "", false
}

func dimensionRank(name string) int {
	for i, d := range DimensionOrder {
		if d == name {
			return i
		}
	}
	return len(DimensionOrder)
}

// Suggest ranks templated suggestions: critical before improvement, then
// lower score first, then DimensionOrder.
func Suggest(dims map[string]int) []Suggestion {
	out := make([]Suggestion, 0, len(dims))
	for _, name := range DimensionOrder {
		score, ok := dims[name]
		if !ok {
			continue
		}
		sev, weak := severityOf(score)
		if !weak {
			continue
		}
		out = append(out, Suggestion{Dimension: name, Severity: sev, Score: score, Text: Template(name, sev)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity != b.Severity {
			return a.Severity == SeverityCritical
		}
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		return dimensionRank(a.Dimension) < dimensionRank(b.Dimension)
	})
	return out
}

// Weak lists dimensions scoring below WeakBelow in DimensionOrder.
func Weak(dims map[string]int) []string {
	var out []string
	for _, name := range DimensionOrder {
		if v, ok := dims[name]; ok && v < WeakBelow {
			out = append(out, name)
		}
	}
	return out
}
