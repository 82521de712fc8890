package types

// ImageID identifies an Image by its source URL. There is at most one Image
// per URL across a Controller.
type ImageID = string

// BucketID identifies a Bucket by its name within a Controller.
type BucketID = string

// RequestID identifies one RenderRequest. Unlike ImageID, it is not derived
// from (url, size, bucket) — requesting the same url/size/bucket twice
// shares one Image but produces two distinct RenderRequests.
//
// RenderRequest, Image, and Bucket cross-reference each other by these ids,
// never by pointer: the Controller is the only place that holds the actual
// struct pointers, indexed by id.
type RequestID = int64
