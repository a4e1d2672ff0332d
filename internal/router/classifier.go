// ABOUTME: Free-text classifier contract and the default keyword implementation
// ABOUTME: Used by the router when no activation code, menu reply or sticky rule applies

package router

import (
	"context"
	"regexp"
)

// Classifier maps free text to a domain tag.
type Classifier interface {
	Classify(ctx context.Context, text string) (Domain, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (Domain, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, text string) (Domain, error) {
	return f(ctx, text)
}

var orderRefPattern = regexp.MustCompile(`(?i)\b(ORDER|TRACK)-\d+\b`)

// KeywordClassifier matches folded keywords. Claims win over purchases and
// purchases over bookings, so "reclamo por mi pedido" is a claim.
type KeywordClassifier struct {
	keywords map[Domain]map[string]struct{}
}

var defaultKeywords = map[Domain][]string{
	Claims: {
		"reclamo", "reclamos", "reclamar", "reclamacion", "queja", "quejas",
		"devolucion", "reembolso", "claim", "claims", "complaint", "refund",
	},
	Purchases: {
		"compra", "compras", "pedido", "pedidos", "orden", "ordenes", "envio",
		"seguimiento", "rastrear", "rastreo", "purchase", "purchases", "order",
		"orders", "tracking", "shipment",
	},
	Bookings: {
		"reserva", "reservas", "reservar", "turno", "turnos", "cita", "agendar",
		"agenda", "booking", "book", "appointment", "horario", "disponibilidad",
	},
}

var keywordPriority = []Domain{Claims, Purchases, Bookings}

// NewKeywordClassifier returns the default Spanish/English keyword classifier.
func NewKeywordClassifier() *KeywordClassifier {
	kc := &KeywordClassifier{keywords: make(map[Domain]map[string]struct{})}
	for d, list := range defaultKeywords {
		set := make(map[string]struct{}, len(list))
		for _, w := range list {
			set[w] = struct{}{}
		}
		kc.keywords[d] = set
	}
	return kc
}

// Classify returns the highest-priority domain with a matching keyword, or Unknown.
func (kc *KeywordClassifier) Classify(_ context.Context, text string) (Domain, error) {
	folded := Fold(text)
	tokens := words(folded)

	for _, d := range keywordPriority {
		set := kc.keywords[d]
		for _, tok := range tokens {
			if _, ok := set[tok]; ok {
				return d, nil
			}
		}
		if d == Purchases && orderRefPattern.MatchString(folded) {
			return Purchases, nil
		}
	}
	return Unknown, nil
}
