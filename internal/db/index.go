package db

import "errors"

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

const (
	// DistanceL2 is Euclidean distance.
	DistanceL2 DistanceMetric = "L2"
	// DistanceIP is inner product distance.
	DistanceIP DistanceMetric = "IP"
	// DistanceCosine is cosine distance.
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm selects the indexing algorithm for the vector field in FT.CREATE.
type VectorAlgorithm string

const (
	// VectorHNSW uses the HNSW algorithm.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat uses the FLAT (brute-force) algorithm.
	VectorFlat VectorAlgorithm = "FLAT"
)

// VectorField describes the vector column of an FT index.
type VectorField struct {
	Name        string
	Algo        VectorAlgorithm
	Dim         int
	Distance    DistanceMetric
	M           int // HNSW M: max edges per node
	EFConstruct int // HNSW EF_CONSTRUCTION: build-time dynamic list size
}

// IndexDefinition is a complete FT index definition used by FT.CREATE.
// Documents are stored as hashes; non-vector hash fields are returned
// verbatim by search and need no schema entry.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Vector   VectorField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if idx.Vector.Name == "" {
		return errors.New("vector field name is required")
	}
	if idx.Vector.Dim <= 0 {
		return errors.New("vector field requires positive DIM")
	}
	return nil
}
