// Package talkonpaper is the catalog behind a site that pairs academic papers
// with recorded talks by their authors.
//
// It exposes a single Service interface over a pluggable Repository (memory,
// SQLite, Postgres) and a media.Resolver that turns private object keys into
// short-lived signed URLs. Whether a viewer may watch a talk in full is
// decided by the access package; the service only resolves video and audio
// URLs for viewers the policy admits, while previews and thumbnails are
// resolved for everyone.
//
// Media Failures
//
// Media resolution never fails a page. A missing key, an unreachable object
// store, or a misconfigured signer all surface as an empty URL on the
// returned TalkDetail so that the rest of the page still renders.
package talkonpaper
