// Package internal holds helpers shared by the rvperm packages.
package internal

import (
	"iter"
)

// IterSeq2Concat concatenates key/value sequences, in order. Duplicate
// keys are yielded once per sequence that holds them.
func IterSeq2Concat[K any, V any](seqs ...iter.Seq2[K, V]) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, seq := range seqs {
			for key, value := range seq {
				if !yield(key, value) {
					return
				}
			}
		}
	}
}
