// Package refval defines the reference value record: the trusted,
// versioned digest set extracted from a verified software-supply-chain
// provenance document.
//
// A reference value carries an artifact name, an expiration instant,
// and an ordered list of (algorithm, digest) pairs. Records are built
// by the extraction pipeline in the [extractor] subpackage and handed
// to the [broadcast] subpackage, which stores them in a [cache] backend
// and publishes the serialized form to downstream policy engines.
//
// # Quick Start
//
// Register the compiled-in provenance formats, extract, then
// store-and-publish:
//
//	reg := extractor.NewRegistry()
//	reg.Register(intoto.TypeName, func() extractor.Extractor { return intoto.New() })
//	reg.Register(slsaprov.TypeName, func() extractor.Extractor { return slsaprov.New() })
//
//	h := extractor.NewHandler(reg)
//	rv, err := h.HandleProvenance(ctx, "slsa-provenance", "myapp.tar.gz", doc, params)
//	if err != nil {
//	    return err
//	}
//
//	b := broadcast.New(cache.NewMemory(), channel)
//	err = b.StoreAndPublish(ctx, rv)
//
// # Wire Form
//
// Reference values serialize to a fixed JSON object consumed by the
// attestation service:
//
//	{
//	    "version": "0.1",
//	    "name": "myapp.tar.gz",
//	    "expired": "2026-09-23T00:00:00Z",
//	    "hash-value": [{"alg": "sha256", "value": "abc..."}]
//	}
//
// Deserialization rejects a missing or malformed "expired" field and
// defaults an absent "version" to [Version].
package refval
