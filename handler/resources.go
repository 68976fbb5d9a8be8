package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/stevemurr/simple-review-server/page"
	"github.com/stevemurr/simple-review-server/rules"
	"github.com/stevemurr/simple-review-server/schema"
	"github.com/stevemurr/simple-review-server/store"
)

// backRef is the field reviews and photos use to point at their business.
const backRef = "businessID"

// resource binds a collection to its schema and naming.
type resource struct {
	name   string // collection and URL segment, e.g. "reviews"
	entity string // singular, e.g. "review"
	schema schema.Schema
	keep   []string // fields preserved across PUT and PATCH
}

var (
	businesses = resource{name: "businesses", entity: "business", schema: schema.Business}
	reviews    = resource{name: "reviews", entity: "review", schema: schema.Review, keep: []string{backRef}}
	photos     = resource{name: "photos", entity: "photo", schema: schema.Photo, keep: []string{backRef}}
)

func (res resource) link(id int) string {
	return "/" + res.name + "/" + strconv.Itoa(id)
}

func (res resource) invalidMsg() string {
	return "Request does not contain a body with an appropriate " + res.entity + " schema"
}

func (res resource) noMatchMsg() string {
	return "Request does not contain a body with at least one attribute that match the " + res.entity + " schema"
}

// created writes the 201 body for a new record.
func (res resource) created(w http.ResponseWriter, id int) {
	writeJSON(w, http.StatusCreated, map[string]any{
		res.entity + "ID": id,
		"links": map[string]string{
			res.entity: res.link(id),
		},
	})
}

// ---------- list / item CRUD ----------

func (h *Handler) list(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, err := h.store.Len(res.name)
		if h.storeError(w, r, err) {
			return
		}
		p := page.Paginate(total, page.ParsePage(r.URL.Query().Get("page")), page.DefaultSize)
		items, err := h.store.Slice(res.name, p.Start, p.End)
		if h.storeError(w, r, err) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			res.name:     items,
			"pageNumber": p.Number,
			"totalPages": p.TotalPages,
			"pageSize":   p.Size,
			"totalCount": p.Total,
			"links":      page.Links(res.name, p),
		})
	}
}

func (h *Handler) get(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			h.notFound(w, r)
			return
		}
		doc, err := h.store.Get(res.name, id)
		if h.storeError(w, r, err) {
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (h *Handler) replace(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			h.notFound(w, r)
			return
		}
		// A missing record is reported before a bad body.
		if _, err := h.store.Get(res.name, id); h.storeError(w, r, err) {
			return
		}
		incoming := readDoc(r)
		if err := schema.Validate(incoming, res.schema); err != nil {
			h.log.Debugw("rejected replace", "collection", res.name, "id", id, "error", err)
			writeError(w, http.StatusBadRequest, res.invalidMsg())
			return
		}
		doc, err := h.store.Replace(res.name, id, schema.Extract(incoming, res.schema), res.keep...)
		if h.storeError(w, r, err) {
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (h *Handler) merge(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			h.notFound(w, r)
			return
		}
		if _, err := h.store.Get(res.name, id); h.storeError(w, r, err) {
			return
		}
		incoming := readDoc(r)
		if !schema.HasAny(incoming, res.schema) {
			h.log.Debugw("rejected merge", "collection", res.name, "id", id, "error", schema.ErrNoMatchingFields)
			writeError(w, http.StatusBadRequest, res.noMatchMsg())
			return
		}
		doc, err := h.store.Merge(res.name, id, schema.Extract(incoming, res.schema), res.keep...)
		if h.storeError(w, r, err) {
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (h *Handler) remove(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			h.notFound(w, r)
			return
		}
		if h.storeError(w, r, h.store.Tombstone(res.name, id)) {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---------- create ----------

func (h *Handler) createBusiness(w http.ResponseWriter, r *http.Request) {
	incoming := readDoc(r)
	if err := schema.Validate(incoming, businesses.schema); err != nil {
		h.log.Debugw("rejected create", "collection", businesses.name, "error", err)
		writeError(w, http.StatusBadRequest, businesses.invalidMsg())
		return
	}
	id, err := h.store.Append(businesses.name, schema.Extract(incoming, businesses.schema))
	if h.storeError(w, r, err) {
		return
	}
	businesses.created(w, id)
}

// owner resolves the {id} path value to a live business.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return 0, false
	}
	if _, err := h.store.Get(businesses.name, id); h.storeError(w, r, err) {
		return 0, false
	}
	return id, true
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.owner(w, r)
	if !ok {
		return
	}
	incoming := readDoc(r)
	if err := schema.Validate(incoming, reviews.schema); err != nil {
		h.log.Debugw("rejected create", "collection", reviews.name, "error", err)
		writeError(w, http.StatusBadRequest, reviews.invalidMsg())
		return
	}
	review := schema.Extract(incoming, reviews.schema)
	if err := rules.CheckReview(review); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	review[backRef] = businessID

	id, err := h.store.AppendUnique(reviews.name, review, backRef)
	if errors.Is(err, store.ErrDuplicate) {
		h.log.Debugw("rejected create", "collection", reviews.name, "error", err)
		writeError(w, http.StatusBadRequest, "Resource already have an existing review")
		return
	}
	if h.storeError(w, r, err) {
		return
	}
	reviews.created(w, id)
}

func (h *Handler) createPhoto(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.owner(w, r)
	if !ok {
		return
	}
	incoming := readDoc(r)
	if err := schema.Validate(incoming, photos.schema); err != nil {
		h.log.Debugw("rejected create", "collection", photos.name, "error", err)
		writeError(w, http.StatusBadRequest, photos.invalidMsg())
		return
	}
	photo := schema.Extract(incoming, photos.schema)
	photo[backRef] = businessID

	id, err := h.store.Append(photos.name, photo)
	if h.storeError(w, r, err) {
		return
	}
	photos.created(w, id)
}
