// Package backbeat implements the Replication Route Handler (spec §4.6):
// the privileged internal HTTP surface an out-of-band replication worker
// calls to push data, metadata and multipart fragments into a secondary
// backend. Routing is done with gorilla/mux, the same router the rest of
// the corpus's internal HTTP surfaces use.
package backbeat

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/scality/cloudserver/internal/backend"
	"github.com/scality/cloudserver/internal/datastore"
	apperrors "github.com/scality/cloudserver/internal/errors"
	"github.com/scality/cloudserver/internal/location"
	"github.com/scality/cloudserver/internal/metadata"
)

// Header names the contract table in spec §4.6 names explicitly.
const (
	HeaderStorageType         = "x-scal-storage-type"
	HeaderStorageClass        = "x-scal-storage-class"
	HeaderVersionID           = "x-scal-version-id"
	HeaderCanonicalID         = "x-scal-canonical-id"
	HeaderPartNumber          = "x-scal-part-number"
	HeaderUploadID            = "x-scal-upload-id"
	HeaderReplicationContent  = "x-scal-replication-content"
	HeaderContentMD5          = "content-md5"
	replicationContentMeta    = "METADATA"
	replicationStatusReplica  = "REPLICA"
)

// Handler wires the backbeat routes onto a gorilla/mux router.
type Handler struct {
	reg   *location.Registry
	store *datastore.Store
	meta  metadata.Store
}

// New builds a backbeat Handler.
func New(reg *location.Registry, store *datastore.Store, meta metadata.Store) *Handler {
	return &Handler{reg: reg, store: store, meta: meta}
}

// Register mounts every backbeat route on r, matching the path template
// in spec §6.
func (h *Handler) Register(r *mux.Router) {
	sub := r.PathPrefix("/_/backbeat").Subrouter()
	sub.HandleFunc("/data/{bucket}/{key:.+}", h.handleData).Methods(http.MethodPut)
	sub.HandleFunc("/metadata/{bucket}/{key:.+}", h.handleMetadata).Methods(http.MethodPut)
	sub.HandleFunc("/multiplebackenddata/{bucket}/{key:.+}", h.handleMultipleBackendData).
		Methods(http.MethodPut, http.MethodPost, http.MethodDelete)
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Resource  string `json:"resource"`
	RequestID string `json:"requestId"`
}

func writeError(w http.ResponseWriter, resource, reqID string, err error) {
	code, status := "InternalError", http.StatusInternalServerError
	if ce, ok := err.(apperrors.Error); ok {
		code, status = ce.Code(), ce.HTTPStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Code: code, Message: err.Error(), Resource: resource, RequestID: reqID})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// checkLocationCoherence rejects with InvalidRequest unless the named
// location's registered Constraint matches both the storage type the
// worker expects and the bucket name the worker is addressing (spec §4.6
// "Location coherence check"): a misconfigured worker cannot stampede
// data across backend types.
func checkLocationCoherence(reg *location.Registry, locationName, expectType, requestBucket string) error {
	c, ok := reg.Constraint(locationName)
	if !ok {
		return apperrors.InvalidRequest("unknown storage class " + locationName)
	}
	if c.Type != expectType {
		return apperrors.InvalidRequest("storage type mismatch for location " + locationName)
	}
	if c.BucketName != requestBucket {
		return apperrors.InvalidRequest("bucket name mismatch for location " + locationName)
	}
	return nil
}

func (h *Handler) requireVersioning(bucket string, r *http.Request) (metadata.BucketInfo, error) {
	bi, err := h.meta.GetBucket(r.Context(), bucket)
	if err != nil {
		return metadata.BucketInfo{}, err
	}
	if bi.Versioning == metadata.VersioningUnversioned {
		return metadata.BucketInfo{}, apperrors.InvalidBucketState("replication target bucket is not versioned")
	}
	return bi, nil
}

// handleData serves PUT /_/backbeat/data/{bucket}/{key}: a full-object
// data-only replica write, independent of the metadata-only route.
func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bucket, key := vars["bucket"], vars["key"]
	reqID := r.Header.Get("x-scal-request-id")

	if _, err := h.requireVersioning(bucket, r); err != nil {
		writeError(w, key, reqID, err)
		return
	}

	locationName := r.Header.Get(HeaderStorageClass)
	expectType := r.Header.Get(HeaderStorageType)
	if err := checkLocationCoherence(h.reg, locationName, expectType, bucket); err != nil {
		writeError(w, key, reqID, err)
		return
	}

	size := r.ContentLength
	kc := backend.KeyContext{BucketName: bucket, ObjectKey: key}
	res, err := h.store.Put(r.Context(), locationName, r.Body, size, kc, r.Header.Get(HeaderContentMD5), reqID)
	if err != nil {
		writeError(w, key, reqID, err)
		return
	}
	writeJSON(w, []map[string]string{{"key": res.Info.Key, "dataStoreName": locationName}})
}

// handleMetadata serves PUT /_/backbeat/metadata/{bucket}/{key}, a
// metadata-only replication route subject to the same versioning
// precondition as handleData.
func (h *Handler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bucket, key := vars["bucket"], vars["key"]
	reqID := r.Header.Get("x-scal-request-id")

	if _, err := h.requireVersioning(bucket, r); err != nil {
		writeError(w, key, reqID, err)
		return
	}

	if got := r.Header.Get(HeaderReplicationContent); got != replicationContentMeta {
		writeError(w, key, reqID, apperrors.InvalidRequest(HeaderReplicationContent+" must be "+replicationContentMeta))
		return
	}

	existing, err := h.meta.GetObject(r.Context(), bucket, key, "")
	if err != nil {
		writeError(w, key, reqID, apperrors.ObjNotFound(bucket, key))
		return
	}

	var incoming metadata.ObjectMD
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, key, reqID, apperrors.MalformedXML(err.Error()))
		return
	}

	// Preserve the physical location record from the existing object;
	// everything else is replaced by the incoming replica metadata (spec
	// §4.6 "Metadata-only replication").
	incoming.Bucket = bucket
	incoming.Key = key
	incoming.Location = existing.Location
	incoming.ContentEncoding = backend.StripAWSChunked(incoming.ContentEncoding)

	if err := h.meta.PutObject(r.Context(), incoming); err != nil {
		writeError(w, key, reqID, err)
		return
	}
	writeJSON(w, map[string]string{})
}

// handleMultipleBackendData serves the `multiplebackenddata` route
// family, dispatched by the `operation` query parameter.
func (h *Handler) handleMultipleBackendData(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bucket, key := vars["bucket"], vars["key"]
	reqID := r.Header.Get("x-scal-request-id")
	op := r.URL.Query().Get("operation")

	locationName := r.Header.Get(HeaderStorageClass)
	expectType := r.Header.Get(HeaderStorageType)
	if err := checkLocationCoherence(h.reg, locationName, expectType, bucket); err != nil {
		writeError(w, key, reqID, err)
		return
	}

	switch op {
	case "putobject":
		h.putObject(w, r, bucket, key, locationName, reqID)
	case "putpart":
		h.putPart(w, r, bucket, key, locationName, reqID)
	case "initiatempu":
		h.initiateMPU(w, r, bucket, key, locationName, reqID)
	case "completempu":
		h.completeMPU(w, r, bucket, key, locationName, reqID)
	case "deleteobject":
		h.deleteObject(w, r, bucket, key, locationName, reqID)
	default:
		writeError(w, key, reqID, apperrors.InvalidRequest("unknown operation "+op))
	}
}

func (h *Handler) putObject(w http.ResponseWriter, r *http.Request, bucket, key, locationName, reqID string) {
	versionID := r.Header.Get(HeaderVersionID)
	if versionID == "" {
		writeError(w, key, reqID, apperrors.InvalidRequest(HeaderVersionID+" is required"))
		return
	}
	kc := backend.KeyContext{
		BucketName: bucket,
		ObjectKey:  key,
		MetaHeaders: map[string]string{
			"scal-replication-status":  replicationStatusReplica,
			"scal-source-version-id":   versionID,
			"scal-source-canonical-id": r.Header.Get(HeaderCanonicalID),
		},
	}
	if _, err := h.store.Put(r.Context(), locationName, r.Body, r.ContentLength, kc, r.Header.Get(HeaderContentMD5), reqID); err != nil {
		writeError(w, key, reqID, err)
		return
	}
	writeJSON(w, map[string]string{"versionId": versionID})
}

func (h *Handler) putPart(w http.ResponseWriter, r *http.Request, bucket, key, locationName, reqID string) {
	uploadID := r.Header.Get(HeaderUploadID)
	partNumber, err := strconv.Atoi(r.Header.Get(HeaderPartNumber))
	if uploadID == "" || err != nil {
		writeError(w, key, reqID, apperrors.InvalidRequest(HeaderUploadID+" and "+HeaderPartNumber+" are required"))
		return
	}
	c, err := h.reg.Client(locationName)
	if err != nil {
		writeError(w, key, reqID, err)
		return
	}
	mpu, ok := c.(backend.MultipartClient)
	if !ok {
		writeError(w, key, reqID, apperrors.NotImplemented("uploadPart on "+c.Type()))
		return
	}
	kc := backend.KeyContext{BucketName: bucket, ObjectKey: key}
	part, err := mpu.UploadPart(kc, uploadID, partNumber, r.Body, r.ContentLength, reqID)
	if err != nil {
		writeError(w, key, reqID, err)
		return
	}
	writeJSON(w, map[string]interface{}{"partNumber": part.PartNumber, "ETag": part.ETag})
}

func (h *Handler) initiateMPU(w http.ResponseWriter, r *http.Request, bucket, key, locationName, reqID string) {
	versionID := r.Header.Get(HeaderVersionID)
	if versionID == "" {
		writeError(w, key, reqID, apperrors.InvalidRequest(HeaderVersionID+" is required"))
		return
	}
	c, err := h.reg.Client(locationName)
	if err != nil {
		writeError(w, key, reqID, err)
		return
	}
	mpu, ok := c.(backend.MultipartClient)
	if !ok {
		writeError(w, key, reqID, apperrors.NotImplemented("initiateMPU on "+c.Type()))
		return
	}
	kc := backend.KeyContext{BucketName: bucket, ObjectKey: key}
	uploadID, err := mpu.CreateMPU(kc, reqID)
	if err != nil {
		writeError(w, key, reqID, err)
		return
	}
	if tracker, ok := h.meta.(metadata.MPUTracker); ok {
		tracker.RegisterMPU(bucket, uploadID)
	}
	writeJSON(w, map[string]string{"uploadId": uploadID})
}

type completeMPUPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"ETag"`
}

func (h *Handler) completeMPU(w http.ResponseWriter, r *http.Request, bucket, key, locationName, reqID string) {
	uploadID := r.Header.Get(HeaderUploadID)
	if uploadID == "" {
		writeError(w, key, reqID, apperrors.InvalidRequest(HeaderUploadID+" is required"))
		return
	}
	var body struct {
		Parts []completeMPUPart `json:"parts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, key, reqID, apperrors.MalformedXML(err.Error()))
		return
	}
	c, err := h.reg.Client(locationName)
	if err != nil {
		writeError(w, key, reqID, err)
		return
	}
	mpu, ok := c.(backend.MultipartClient)
	if !ok {
		writeError(w, key, reqID, apperrors.NotImplemented("completeMPU on "+c.Type()))
		return
	}
	parts := make([]backend.PartInfo, 0, len(body.Parts))
	for _, p := range body.Parts {
		parts = append(parts, backend.PartInfo{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	kc := backend.KeyContext{BucketName: bucket, ObjectKey: key}
	if _, err := mpu.CompleteMPU(kc, uploadID, parts, reqID); err != nil {
		writeError(w, key, reqID, err)
		return
	}
	if tracker, ok := h.meta.(metadata.MPUTracker); ok {
		tracker.ResolveMPU(bucket, uploadID)
	}
	// The {key, dataStoreName} shape is reserved for the internal `data`
	// route (spec §6); completempu responds with an empty object.
	writeJSON(w, map[string]string{})
}

func (h *Handler) deleteObject(w http.ResponseWriter, r *http.Request, bucket, key, locationName, reqID string) {
	info := backend.RetrievalInfo{Key: key, DataStoreName: locationName}
	if err := h.store.Delete(r.Context(), info, reqID); err != nil {
		writeError(w, key, reqID, err)
		return
	}
	writeJSON(w, map[string]string{})
}
