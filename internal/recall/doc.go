// Package recall lets domain handlers remember what a customer said and
// retrieve the most similar earlier utterances.
package recall
