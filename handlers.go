package main

// handlers.go is the HTTP surface over the store, patch protocol and access flows

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// app carries the shared state explicitly; handlers are methods on it rather
// than closures over package globals.
type app struct {
	store  *Store
	access *AccessController
}

func newApp(store *Store, access *AccessController) *app {
	return &app{store: store, access: access}
}

func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/login", a.Login)
	mux.HandleFunc("/logout", a.Logout)
	mux.HandleFunc("/documents/unlock", a.UnlockDocuments)

	mux.HandleFunc("/password-reset/generate", a.GenerateReset)
	mux.HandleFunc("/password-reset/verify", a.VerifyReset)
	mux.HandleFunc("/password-reset/complete", a.CompleteReset)

	mux.HandleFunc("/content", a.GetContent)
	mux.HandleFunc("/content/", a.HandleContentPath)

	// Restoring the defaults discards every saved edit, so it is admin-only.
	mux.HandleFunc("/reset", a.requireScope(ScopeAdmin, a.ResetContent))

	return mux
}

// requireScope wraps a handler with bearer-token auth for one scope.
func (a *app) requireScope(scope Scope, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.bearerScope(r, scope); !ok {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// bearerScope reports whether the request carries a valid token for want.
// An admin token also satisfies a docs requirement.
func (a *app) bearerScope(r *http.Request, want Scope) (Scope, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	bearerToken := strings.Split(authHeader, " ")
	if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
		return "", false
	}
	scope, err := a.access.TokenScope(bearerToken[1])
	if err != nil {
		return "", false
	}
	if scope == want || (scope == ScopeAdmin && want == ScopeDocs) {
		return scope, true
	}
	return scope, false
}

// contentView is what goes over the wire: never the secrets, and the
// documents section only when the request is entitled to see it.
type contentView struct {
	*ContentTree
	Credentials *Credentials `json:"credentials,omitempty"`
	Documents   []Document   `json:"documents,omitempty"`
}

func (a *app) viewFor(r *http.Request, t *ContentTree) contentView {
	view := contentView{ContentTree: t}
	if _, ok := a.bearerScope(r, ScopeDocs); ok {
		view.Documents = t.Documents
	}
	return view
}

// GetContent returns the whole tree (minus secrets, docs gated).
func (a *app) GetContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tree := a.store.Load()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.viewFor(r, tree))
}

// HandleContentPath dispatches /content/... by path shape:
//
//	/content/profile                  PATCH profile fields
//	/content/profile/picture          POST picture upload
//	/content/{list}                   GET section, POST add item
//	/content/{list}/{index}           PATCH item, DELETE item
//	/content/{list}/{index}/file      POST upload, GET download
func (a *app) HandleContentPath(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// parts[0] is "content"
	if len(parts) < 2 {
		http.Error(w, "Invalid URL", http.StatusBadRequest)
		return
	}

	if parts[1] == "profile" {
		switch {
		case len(parts) == 2 && (r.Method == http.MethodPatch || r.Method == http.MethodPut):
			a.requireScope(ScopeAdmin, a.UpdateProfile)(w, r)
		case len(parts) == 3 && parts[2] == "picture" && r.Method == http.MethodPost:
			a.requireScope(ScopeAdmin, a.UploadProfilePhoto)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	list, err := ParseListName(parts[1])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	switch len(parts) {
	case 2:
		switch r.Method {
		case http.MethodGet:
			a.GetSection(w, r, list)
		case http.MethodPost:
			a.requireScope(ScopeAdmin, func(w http.ResponseWriter, r *http.Request) {
				a.AddListItem(w, r, list)
			})(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 3, 4:
		index, convErr := strconv.Atoi(parts[2])
		if convErr != nil {
			http.Error(w, "Invalid index", http.StatusBadRequest)
			return
		}
		if len(parts) == 4 {
			if parts[3] != "file" {
				http.Error(w, "Invalid URL", http.StatusBadRequest)
				return
			}
			switch r.Method {
			case http.MethodPost:
				a.requireScope(ScopeAdmin, func(w http.ResponseWriter, r *http.Request) {
					a.UploadListFile(w, r, list, index)
				})(w, r)
			case http.MethodGet:
				a.DownloadListFile(w, r, list, index)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}
		switch r.Method {
		case http.MethodPatch, http.MethodPut:
			a.requireScope(ScopeAdmin, func(w http.ResponseWriter, r *http.Request) {
				a.PatchListItem(w, r, list, index)
			})(w, r)
		case http.MethodDelete:
			a.requireScope(ScopeAdmin, func(w http.ResponseWriter, r *http.Request) {
				a.DeleteListItem(w, r, list, index)
			})(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		http.Error(w, "Invalid URL", http.StatusBadRequest)
	}
}

// GetSection returns one named list. The documents section needs docs access.
func (a *app) GetSection(w http.ResponseWriter, r *http.Request, list ListName) {
	if list == ListDocuments {
		if _, ok := a.bearerScope(r, ScopeDocs); !ok {
			http.Error(w, "This section requires a password", http.StatusUnauthorized)
			return
		}
	}
	tree := a.store.Load()
	w.Header().Set("Content-Type", "application/json")
	switch list {
	case ListSkills:
		json.NewEncoder(w).Encode(tree.Skills)
	case ListEducation:
		json.NewEncoder(w).Encode(tree.Education)
	case ListTimeline:
		json.NewEncoder(w).Encode(tree.Timeline)
	case ListSocialLinks:
		json.NewEncoder(w).Encode(tree.SocialLinks)
	case ListGalleryImages:
		json.NewEncoder(w).Encode(tree.GalleryImages)
	case ListGalleryVideos:
		json.NewEncoder(w).Encode(tree.GalleryVideos)
	case ListDocuments:
		json.NewEncoder(w).Encode(tree.Documents)
	}
}

// UpdateProfile shallow-merges the posted fields into the profile.
func (a *app) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	tree := a.store.Load()
	if err := json.NewDecoder(r.Body).Decode(&tree.Profile); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.store.Save(tree); err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tree.Profile)
}

// PatchListItem applies a partial update to the item at index.
func (a *app) PatchListItem(w http.ResponseWriter, r *http.Request, list ListName, index int) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if list == ListEducation {
		body, err = splitEducationPatch(body)
		if err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	tree := a.store.Load()
	if err := ApplyItemPatch(tree, list, index, body); err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.store.Save(tree); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Item updated successfully"})
}

// AddListItem appends a placeholder item and returns it with its index.
func (a *app) AddListItem(w http.ResponseWriter, r *http.Request, list ListName) {
	tree := a.store.Load()
	index, err := AddItem(tree, list)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.store.Save(tree); err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"index": index})
}

// DeleteListItem removes the item at index; later indices shift down.
func (a *app) DeleteListItem(w http.ResponseWriter, r *http.Request, list ListName, index int) {
	tree := a.store.Load()
	if err := DeleteItem(tree, list, index); err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.store.Save(tree); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Item deleted successfully"})
}

// UploadListFile validates and embeds an uploaded file into the item at
// index. The upload rules are resolved against the tree as it was when the
// request arrived; the patch itself lands on the tree as it is after the read.
func (a *app) UploadListFile(w http.ResponseWriter, r *http.Request, list ListName, index int) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	tree := a.store.Load()
	kind, err := uploadKindFor(tree, list, index)
	if err != nil {
		a.writeError(w, err)
		return
	}

	asset, err := Ingest(file, header.Filename, header.Header.Get("Content-Type"), header.Size, kind)
	if err != nil {
		a.writeError(w, err)
		return
	}

	if err := a.commitUploadPatch(list, index, asset); err != nil {
		a.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"fileName": asset.FileName,
		"fileSize": asset.FileSize,
		"fileType": asset.FileType,
	})
}

// commitUploadPatch lands an ingested asset on the item at index. The tree is
// loaded here, after the file has been read, so a delete that completed while
// the upload was in flight fails the bounds check instead of coming back with
// the save.
func (a *app) commitUploadPatch(list ListName, index int, asset *EmbeddedAsset) error {
	patch, err := uploadPatch(list, asset)
	if err != nil {
		return err
	}
	tree := a.store.Load()
	if err := ApplyItemPatch(tree, list, index, patch); err != nil {
		return err
	}
	return a.store.Save(tree)
}

// UploadProfilePhoto replaces the hero image with embedded data.
func (a *app) UploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	asset, err := Ingest(file, header.Filename, header.Header.Get("Content-Type"), header.Size, UploadProfilePicture)
	if err != nil {
		a.writeError(w, err)
		return
	}

	tree := a.store.Load()
	tree.Profile.ProfilePicture = asset.URL
	if err := a.store.Save(tree); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Profile picture updated"})
}

// DownloadListFile serves an embedded asset as an attachment. Items without
// a real upload have nothing to download.
func (a *app) DownloadListFile(w http.ResponseWriter, r *http.Request, list ListName, index int) {
	if list == ListDocuments {
		if _, ok := a.bearerScope(r, ScopeDocs); !ok {
			http.Error(w, "This section requires a password", http.StatusUnauthorized)
			return
		}
	}

	tree := a.store.Load()
	dataURL, fileName, err := embeddedFileAt(tree, list, index)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !HasRealFile(dataURL) {
		http.Error(w, "No file has been uploaded for this item", http.StatusNotFound)
		return
	}

	mediaType, payload, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ";base64,")
	if !ok {
		http.Error(w, "Stored file data is unreadable", http.StatusInternalServerError)
		return
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		http.Error(w, "Stored file data is unreadable", http.StatusInternalServerError)
		return
	}

	if fileName == "" {
		fileName = "download"
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	w.Write(data)
}

// Login unlocks the admin scope and returns a session token.
func (a *app) Login(w http.ResponseWriter, r *http.Request) {
	a.unlockScope(w, r, ScopeAdmin)
}

// UnlockDocuments unlocks the documents section and returns a session token.
func (a *app) UnlockDocuments(w http.ResponseWriter, r *http.Request) {
	a.unlockScope(w, r, ScopeDocs)
}

func (a *app) unlockScope(w http.ResponseWriter, r *http.Request, scope Scope) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	a.access.Prompt(scope)
	token, err := a.access.Unlock(scope, body.Password)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// Logout locks the scope named in the body (admin by default).
func (a *app) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Scope string `json:"scope"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	scope := ScopeAdmin
	if body.Scope != "" {
		parsed, err := ParseScope(body.Scope)
		if err != nil {
			http.Error(w, "Unknown scope", http.StatusBadRequest)
			return
		}
		scope = parsed
	}
	a.access.Logout(scope)
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out"})
}

// GenerateReset starts the simulated forgot-password flow (step 1/3).
func (a *app) GenerateReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Scope string `json:"scope"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	scope, err := ParseScope(body.Scope)
	if err != nil {
		http.Error(w, "Unknown scope", http.StatusBadRequest)
		return
	}
	id, mailto := a.access.BeginReset(scope)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"id": id, "mailto": mailto})
}

// VerifyReset checks the fixed verification code (step 2/3).
func (a *app) VerifyReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	if err := a.access.VerifyResetCode(body.ID, body.Code); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Code verified"})
}

// CompleteReset sets the new password (step 3/3).
func (a *app) CompleteReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ID              string `json:"id"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	if err := a.access.CompleteReset(body.ID, body.NewPassword, body.ConfirmPassword); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Password updated"})
}

// ResetContent discards all saved edits and restores the default tree.
func (a *app) ResetContent(w http.ResponseWriter, r *http.Request) {
	tree, err := a.store.Reset()
	if err != nil {
		a.writeError(w, err)
		return
	}
	log.Println("Content reset to defaults")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.viewFor(r, tree))
}

func (a *app) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOutOfRange), errors.Is(err, ErrUnknownList), errors.Is(err, ErrResetExpired):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidCode):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidPassword):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, ErrFileTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrUnsupportedType):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	default:
		log.Printf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// uploadKindFor resolves which validation rules apply to an upload target.
// Document rules depend on the slot's type, so the index must exist first.
func uploadKindFor(t *ContentTree, list ListName, index int) (UploadKind, error) {
	switch list {
	case ListGalleryImages:
		return UploadGalleryImage, nil
	case ListGalleryVideos:
		return UploadVideo, nil
	case ListDocuments:
		if index < 0 || index >= len(t.Documents) {
			return "", ErrOutOfRange
		}
		return DocUploadKind(t.Documents[index].Type)
	default:
		return "", ErrUnknownList
	}
}

// embeddedFileAt returns the stored url and file name for a downloadable
// item. Only the galleries and documents carry embeddable assets.
func embeddedFileAt(t *ContentTree, list ListName, index int) (string, string, error) {
	switch list {
	case ListGalleryImages:
		if index < 0 || index >= len(t.GalleryImages) {
			return "", "", ErrOutOfRange
		}
		item := t.GalleryImages[index]
		return item.URL, item.FileName, nil
	case ListGalleryVideos:
		if index < 0 || index >= len(t.GalleryVideos) {
			return "", "", ErrOutOfRange
		}
		item := t.GalleryVideos[index]
		return item.URL, item.FileName, nil
	case ListDocuments:
		if index < 0 || index >= len(t.Documents) {
			return "", "", ErrOutOfRange
		}
		item := t.Documents[index]
		return item.URL, item.FileName, nil
	default:
		return "", "", ErrUnknownList
	}
}

// splitEducationPatch expands the combined "institution - year" editable
// field into its two stored fields. The split mirrors the UI exactly: first
// " - " segment is the institution, second is the year, anything after a
// second delimiter is dropped. Lossy when the institution itself contains
// " - "; kept as-is pending a product decision.
func splitEducationPatch(body []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	raw, ok := fields["institutionYear"]
	if !ok {
		return body, nil
	}
	var combined string
	if err := json.Unmarshal(raw, &combined); err != nil {
		return nil, err
	}
	delete(fields, "institutionYear")

	parts := strings.Split(combined, " - ")
	institution, _ := json.Marshal(parts[0])
	year, _ := json.Marshal("")
	if len(parts) > 1 {
		year, _ = json.Marshal(parts[1])
	}
	fields["institution"] = institution
	fields["year"] = year
	return json.Marshal(fields)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}
