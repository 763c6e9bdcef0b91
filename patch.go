// patch.go is the mutation protocol for the content tree's item lists
package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ListName names an editable collection in the tree.
type ListName string

const (
	ListSkills        ListName = "skills"
	ListEducation     ListName = "education"
	ListTimeline      ListName = "timeline"
	ListSocialLinks   ListName = "socialLinks"
	ListGalleryImages ListName = "galleryImages"
	ListGalleryVideos ListName = "galleryVideos"
	ListDocuments     ListName = "documents"
)

var listNames = []ListName{
	ListSkills, ListEducation, ListTimeline, ListSocialLinks,
	ListGalleryImages, ListGalleryVideos, ListDocuments,
}

func ParseListName(s string) (ListName, error) {
	for _, n := range listNames {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownList, s)
}

var (
	ErrUnknownList = errors.New("unknown list")
	ErrOutOfRange  = errors.New("index out of range")
	ErrValidation  = errors.New("validation failed")
)

const maxSkillDescription = 500

// ApplyItemPatch merges the fields present in patch into the item at index of
// the named list. Fields absent from the patch are untouched: the patch is
// decoded onto a copy of the existing item, validated, and only then written
// back, so a rejected patch leaves the tree exactly as it was. A patch against
// an index that was deleted while an upload was in flight fails cleanly with
// ErrOutOfRange.
func ApplyItemPatch(t *ContentTree, list ListName, index int, patch []byte) error {
	switch list {
	case ListSkills:
		return patchItem(t.Skills, index, patch, validateSkill)
	case ListEducation:
		return patchItem(t.Education, index, patch, nil)
	case ListTimeline:
		return patchItem(t.Timeline, index, patch, nil)
	case ListSocialLinks:
		return patchItem(t.SocialLinks, index, patch, validateLink)
	case ListGalleryImages:
		return patchItem(t.GalleryImages, index, patch, nil)
	case ListGalleryVideos:
		return patchItem(t.GalleryVideos, index, patch, nil)
	case ListDocuments:
		return patchItem(t.Documents, index, patch, validateDocument)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
}

// AddItem appends a structurally valid placeholder item to the named list and
// returns its index, so the caller can move straight into editing it.
func AddItem(t *ContentTree, list ListName) (int, error) {
	switch list {
	case ListSkills:
		t.Skills = append(t.Skills, Skill{Name: "New Skill", Description: "A new skill.", Icon: IconCode})
		return len(t.Skills) - 1, nil
	case ListEducation:
		t.Education = append(t.Education, EducationEntry{Degree: "New Degree", Institution: "Institution", Year: "Year"})
		return len(t.Education) - 1, nil
	case ListTimeline:
		t.Timeline = append(t.Timeline, TimelineEvent{Title: "New Event", Year: "Year", Description: "What happened."})
		return len(t.Timeline) - 1, nil
	case ListSocialLinks:
		t.SocialLinks = append(t.SocialLinks, Link{Name: "New Link", URL: "https://example.com", Icon: IconGlobe})
		return len(t.SocialLinks) - 1, nil
	case ListGalleryImages:
		t.GalleryImages = append(t.GalleryImages, GalleryImage{Caption: "New image", URL: "https://picsum.photos/seed/new/800/600"})
		return len(t.GalleryImages) - 1, nil
	case ListGalleryVideos:
		t.GalleryVideos = append(t.GalleryVideos, GalleryVideo{Caption: "New video"})
		return len(t.GalleryVideos) - 1, nil
	case ListDocuments:
		t.Documents = append(t.Documents, Document{
			Name:    "New Document",
			Type:    DocumentOther,
			URL:     "https://picsum.photos/seed/newdoc/400/300",
			Preview: "https://picsum.photos/seed/newdoc/400/300",
		})
		return len(t.Documents) - 1, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
}

// DeleteItem removes the item at index, shifting later items down by one.
func DeleteItem(t *ContentTree, list ListName, index int) error {
	var err error
	switch list {
	case ListSkills:
		t.Skills, err = deleteAt(t.Skills, index)
	case ListEducation:
		t.Education, err = deleteAt(t.Education, index)
	case ListTimeline:
		t.Timeline, err = deleteAt(t.Timeline, index)
	case ListSocialLinks:
		t.SocialLinks, err = deleteAt(t.SocialLinks, index)
	case ListGalleryImages:
		t.GalleryImages, err = deleteAt(t.GalleryImages, index)
	case ListGalleryVideos:
		t.GalleryVideos, err = deleteAt(t.GalleryVideos, index)
	case ListDocuments:
		t.Documents, err = deleteAt(t.Documents, index)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
	return err
}

// ListLen reports the current length of the named list.
func ListLen(t *ContentTree, list ListName) (int, error) {
	switch list {
	case ListSkills:
		return len(t.Skills), nil
	case ListEducation:
		return len(t.Education), nil
	case ListTimeline:
		return len(t.Timeline), nil
	case ListSocialLinks:
		return len(t.SocialLinks), nil
	case ListGalleryImages:
		return len(t.GalleryImages), nil
	case ListGalleryVideos:
		return len(t.GalleryVideos), nil
	case ListDocuments:
		return len(t.Documents), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
}

// patchItem decodes the partial JSON onto a copy of items[index]. Decoding
// onto an existing value only overwrites fields the patch names, which is the
// shallow-merge contract.
func patchItem[T any](items []T, index int, patch []byte, validate func(*T) error) error {
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(items))
	}
	updated := items[index]
	if err := json.Unmarshal(patch, &updated); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if validate != nil {
		if err := validate(&updated); err != nil {
			return err
		}
	}
	items[index] = updated
	return nil
}

func deleteAt[T any](items []T, index int) ([]T, error) {
	if index < 0 || index >= len(items) {
		return items, fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(items))
	}
	return append(items[:index], items[index+1:]...), nil
}

func validateSkill(s *Skill) error {
	if len(s.Description) > maxSkillDescription {
		return fmt.Errorf("%w: description exceeds %d characters", ErrValidation, maxSkillDescription)
	}
	if !s.Icon.Valid() {
		return fmt.Errorf("%w: unknown icon %q", ErrValidation, s.Icon)
	}
	return nil
}

func validateLink(l *Link) error {
	if !l.Icon.Valid() {
		return fmt.Errorf("%w: unknown icon %q", ErrValidation, l.Icon)
	}
	return nil
}

func validateDocument(d *Document) error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown document type %q", ErrValidation, d.Type)
	}
	return nil
}
