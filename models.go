// models.go defines the content tree and the persisted record row
package main

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// IconKey references an entry in the frontend's fixed icon set. Unknown keys
// are rejected at patch time rather than silently rendering nothing.
type IconKey string

const (
	IconCode      IconKey = "code"
	IconDesign    IconKey = "design"
	IconDatabase  IconKey = "database"
	IconCloud     IconKey = "cloud"
	IconCamera    IconKey = "camera"
	IconMusic     IconKey = "music"
	IconPen       IconKey = "pen"
	IconGlobe     IconKey = "globe"
	IconGithub    IconKey = "github"
	IconLinkedin  IconKey = "linkedin"
	IconTwitter   IconKey = "twitter"
	IconFacebook  IconKey = "facebook"
	IconInstagram IconKey = "instagram"
	IconYoutube   IconKey = "youtube"
	IconEmail     IconKey = "email"
	IconPhone     IconKey = "phone"
)

var knownIcons = map[IconKey]bool{
	IconCode: true, IconDesign: true, IconDatabase: true, IconCloud: true,
	IconCamera: true, IconMusic: true, IconPen: true, IconGlobe: true,
	IconGithub: true, IconLinkedin: true, IconTwitter: true, IconFacebook: true,
	IconInstagram: true, IconYoutube: true, IconEmail: true, IconPhone: true,
}

func (k IconKey) Valid() bool { return knownIcons[k] }

// DocumentType fixes which MIME types a document slot accepts (see ingest.go).
type DocumentType string

const (
	DocumentPhoto DocumentType = "photo"
	DocumentNID   DocumentType = "nid"
	DocumentCV    DocumentType = "cv"
	DocumentBank  DocumentType = "bank"
	DocumentOther DocumentType = "other"
)

func (d DocumentType) Valid() bool {
	switch d {
	case DocumentPhoto, DocumentNID, DocumentCV, DocumentBank, DocumentOther:
		return true
	}
	return false
}

type Profile struct {
	FullName       string `json:"fullName" yaml:"fullName"`
	Bio            string `json:"bio" yaml:"bio"`
	ProfilePicture string `json:"profilePicture" yaml:"profilePicture"`
}

type Skill struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Icon        IconKey `json:"icon" yaml:"icon"`
}

type EducationEntry struct {
	Degree      string `json:"degree" yaml:"degree"`
	Institution string `json:"institution" yaml:"institution"`
	Year        string `json:"year" yaml:"year"`
}

type TimelineEvent struct {
	Title       string `json:"title" yaml:"title"`
	Year        string `json:"year" yaml:"year"`
	Description string `json:"description" yaml:"description"`
}

type Link struct {
	Name string  `json:"name" yaml:"name"`
	URL  string  `json:"url" yaml:"url"`
	Icon IconKey `json:"icon" yaml:"icon"`
}

type GalleryImage struct {
	Caption  string `json:"caption" yaml:"caption"`
	URL      string `json:"url" yaml:"url"`
	FileName string `json:"fileName,omitempty" yaml:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty" yaml:"fileSize,omitempty"`
	FileType string `json:"fileType,omitempty" yaml:"fileType,omitempty"`
}

type GalleryVideo struct {
	Caption  string `json:"caption" yaml:"caption"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	FileName string `json:"fileName,omitempty" yaml:"fileName,omitempty"`
}

type Document struct {
	Name     string       `json:"name" yaml:"name"`
	Type     DocumentType `json:"type" yaml:"type"`
	URL      string       `json:"url" yaml:"url"`
	Preview  string       `json:"preview" yaml:"preview"`
	FileName string       `json:"fileName,omitempty" yaml:"fileName,omitempty"`
}

// Credentials are the two locally stored secrets. Comparison is exact string
// equality unless the stored value is a bcrypt hash (see access.go). Simulated
// security only; there is no real account system behind this.
type Credentials struct {
	AdminPassword string `json:"adminPassword" yaml:"adminPassword"`
	DocsPassword  string `json:"docsPassword" yaml:"docsPassword"`
}

// ContentTree is the full editable document: singleton profile plus the
// ordered item lists. Index is the only identity within a list.
type ContentTree struct {
	Profile       Profile          `json:"profile" yaml:"profile"`
	Skills        []Skill          `json:"skills" yaml:"skills"`
	Education     []EducationEntry `json:"education" yaml:"education"`
	Timeline      []TimelineEvent  `json:"timeline" yaml:"timeline"`
	SocialLinks   []Link           `json:"socialLinks" yaml:"socialLinks"`
	GalleryImages []GalleryImage   `json:"galleryImages" yaml:"galleryImages"`
	GalleryVideos []GalleryVideo   `json:"galleryVideos" yaml:"galleryVideos"`
	Documents     []Document       `json:"documents" yaml:"documents"`
	Credentials   Credentials      `json:"credentials" yaml:"credentials"`
}

// HasRealFile reports whether a stored url carries embedded file data, as
// opposed to a placeholder or external URL. This is what gates downloads.
func HasRealFile(url string) bool {
	return strings.HasPrefix(url, "data:")
}

func (d Document) HasRealFile() bool     { return HasRealFile(d.URL) }
func (g GalleryImage) HasRealFile() bool { return HasRealFile(g.URL) }
func (v GalleryVideo) HasRealFile() bool { return HasRealFile(v.URL) }

// ContentRecord is the single database row holding the serialized tree.
type ContentRecord struct {
	gorm.Model
	Key  string `gorm:"uniqueIndex"`
	Data []byte
}

//go:embed defaults.yaml
var defaultSeed []byte

// defaultTree returns a fresh copy of the built-in content. The seed is
// compiled into the binary, so a parse failure here is a build defect.
func defaultTree() *ContentTree {
	var t ContentTree
	if err := yaml.Unmarshal(defaultSeed, &t); err != nil {
		panic(fmt.Sprintf("invalid default content seed: %v", err))
	}
	return &t
}
