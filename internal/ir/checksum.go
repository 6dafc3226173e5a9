package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for checksums. The version suffix allows the algorithm to
// change without colliding with old values.
const (
	DomainCollection = "contentq/collection/v1"
	DomainRow        = "contentq/row/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data), hex encoded.
// The null separator keeps domain and data unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RowHash returns the content hash of a single row.
func RowHash(row IRObject) (string, error) {
	canonical, err := marshalCanonical(stripNulls(row), true)
	if err != nil {
		return "", fmt.Errorf("RowHash: %w", err)
	}
	return hashWithDomain(DomainRow, canonical), nil
}

// CollectionChecksum computes the checksum of a collection's contents.
//
// The checksum covers the collection's field layout and every row in the
// given order. Null object members are omitted before hashing, so a missing
// key and an explicit null hash the same. Null array elements are kept in
// place.
func CollectionChecksum(fields IRArray, rows []IRObject) (string, error) {
	hashes := make(IRArray, len(rows))
	for i, row := range rows {
		h, err := RowHash(row)
		if err != nil {
			return "", fmt.Errorf("CollectionChecksum: row %d: %w", i, err)
		}
		hashes[i] = IRString(h)
	}

	canonical, err := MarshalCanonical(IRObject{
		"fields": fields,
		"rows":   hashes,
	})
	if err != nil {
		return "", fmt.Errorf("CollectionChecksum: %w", err)
	}
	return hashWithDomain(DomainCollection, canonical), nil
}

// MustCollectionChecksum is like CollectionChecksum but panics on error.
// Use only in tests or with known-good input.
func MustCollectionChecksum(fields IRArray, rows []IRObject) string {
	sum, err := CollectionChecksum(fields, rows)
	if err != nil {
		panic(err)
	}
	return sum
}

func stripNulls(v IRValue) IRValue {
	switch val := v.(type) {
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			if _, isNull := elem.(IRNull); isNull {
				continue
			}
			out[k] = stripNulls(elem)
		}
		return out
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = stripNulls(elem)
		}
		return out
	default:
		return v
	}
}
