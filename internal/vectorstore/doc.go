// Package vectorstore stores embedded chunks and answers nearest-neighbour
// queries over them.
//
// Two Index implementations are provided:
//   - ChromemIndex: embedded chromem-go database, persisted to a directory
//     (default ./index) or held in memory when no path is set
//   - QdrantIndex: remote Qdrant server over gRPC
//
// Writer rebuilds a collection from scratch: it drops any existing
// collection, recreates it with the dimension of the incoming vectors and
// inserts every document concurrently. A failed insert rolls the collection
// back so an index is never left half built.
//
// # Usage
//
//	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{Path: "./index"}, logger)
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	w, _ := vectorstore.NewWriter(idx, vectorstore.WriterConfig{}, logger)
//	report, err := w.Rebuild(ctx, "wikirag", docs)
//
//	results, err := idx.Query(ctx, "wikirag", queryVector, 10)
package vectorstore
