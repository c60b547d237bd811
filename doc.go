// Package promptdex provides an embedded hybrid vector store for prompt and
// document retrieval. Reads and writes are routed across a durable primary
// backend (Redis with a search index, or SQLite) and an always-available
// in-memory fallback, with a TTL-bounded query-result cache in front.
//
// When the primary is unreachable at startup the client degrades to the
// fallback instead of failing, and can optionally re-probe and promote the
// primary once it recovers. Searches never fail because an index is empty or
// a backend is down; an empty result set is a valid answer.
//
// # Memory-only
//
//	client, _ := promptdex.New(ctx)
//	client.Upsert(ctx, []promptdex.Document{
//	    {ID: "greet", Content: "You are a helpful assistant.", Vector: vec},
//	})
//	hits, _ := client.SearchVector(ctx, queryVec, 5)
//
// # Durable primary with degradation
//
//	client, _ := promptdex.New(ctx,
//	    promptdex.WithRedis("localhost:6379", ""),
//	    promptdex.WithVectorDimensions(1536),
//	    promptdex.WithReprobe(30*time.Second),
//	)
//	defer client.Close()
//
//	if !client.Stats(ctx).PrimaryActive {
//	    // serving from the in-memory fallback
//	}
//
// # Text queries
//
// Plug any Embedder implementation to search by text and to upsert documents
// without precomputed vectors:
//
//	client, _ := promptdex.New(ctx,
//	    promptdex.WithSQLite("prompts.db"),
//	    promptdex.WithEmbedder(myEmbedder),
//	)
//	hits, _ := client.Search(ctx, "summarize a meeting transcript", 5)
package promptdex
