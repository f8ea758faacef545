// Package rendercache memoizes expensive renders (plots, thumbnails, charts)
// keyed by a caller supplied fingerprint and a quantized output size.
//
// A request for (fingerprint, width, height) is resolved as follows:
//   - the size is mapped onto a coarse geometric grid by a SizingPolicy, so
//     continuous resize noise lands on a few buckets;
//   - the fingerprint is encoded canonically (deterministic CBOR) and hashed;
//   - the entry is looked up in the scope's Provider and validated against
//     the generation counters of every fingerprint prefix.
//
// A miss renders once per key even under concurrent requests (single-flight)
// and the result is stored only if no invalidation happened meanwhile.
//
// Components:
//   - Provider: byte store with TTL (LRU, Ristretto, BigCache, Redis, disk, S3, MinIO).
//   - Codec[A]: (de)serializes the artifact A <-> []byte.
//   - GenStore: generation counter per fingerprint prefix. Local (in-process)
//     by default; Redis or DynamoDB when several processes share a store.
//
// Keys:
//
//	render:<ns>:<hash>:<w>x<h>  - stored artifacts
//	<ns>:<prefix hash>          - generation counters
//
// Usage:
//
//	rc, _ := rendercache.New(rendercache.Options[[]byte]{Namespace: "plots"})
//	e, err := rc.GetOrRender(ctx, rendercache.Of("carat", "price"), 400, 400,
//	    rendercache.RenderFunc[[]byte](func(ctx context.Context, rc rendercache.RenderContext) ([]byte, error) {
//	        return drawScatter(rc.Width, rc.Height)
//	    }))
//
//	_ = rc.Invalidate(ctx, rendercache.Of("carat")) // every fingerprint starting with "carat"
package rendercache
