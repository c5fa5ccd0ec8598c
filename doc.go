// Package ragpipe provides a retrieval-augmented generation context pipeline:
// hybrid vector search with response caching, quality scoring and reranking,
// and token-bounded context assembly with conversation memory.
//
// The pipeline can run embedded via the Client, or as an HTTP service via
// cmd/ragpipe.
//
//	client, _ := ragpipe.New(
//	    ragpipe.WithRedis("localhost:6379", ""),
//	    ragpipe.WithOpenAI(apiKey, "text-embedding-3-small"),
//	    ragpipe.WithDeduplication(0.95),
//	    ragpipe.WithCompression(5, "quantization"),
//	)
//	defer client.Close()
//
//	_, _ = client.StoreRecords(ctx, "", records, ragpipe.StoreBulk)
//	resp, _ := client.Query(ctx, ragpipe.QueryRequest{
//	    Query:          "how does the scheduler place pods",
//	    ConversationID: "conv-1",
//	})
//	fmt.Println(resp.Context)
//
// Embedding provider failures degrade instead of failing: with the fallback
// enabled (default) queries are answered using deterministic embeddings and
// flagged in the response.
package ragpipe
