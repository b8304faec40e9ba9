package picar

import (
	"time"

	"github.com/jmoiron/sqlx"
)

// Image is one stored picture. Tag is a plain string on purpose; there is no
// foreign key into the tags table.
type Image struct {
	ID         int64     `db:"id"`
	Tag        string    `db:"tag"`
	ImgURL     string    `db:"img_url"`
	Uploader   string    `db:"uploader"`
	UploaderID int64     `db:"uploaderId"`
	UploadTime time.Time `db:"upload_time"`
}

// Tag is the authoritative record of a known tag name
type Tag struct {
	ID  int64  `db:"id"`
	Tag string `db:"tag"`
}

func (p *PicarPlugin) setupDB() {
	p.db.MustExec(`create table if not exists picar_images (
		id integer primary key autoincrement,
		tag text,
		img_url text,
		uploader text,
		uploaderId integer,
		upload_time datetime
	);`)
	p.db.MustExec(`create table if not exists picar_tags (
		id integer primary key autoincrement,
		tag text unique
	);`)
}

// getImages returns all images for a tag, or every image when tag is empty
func getImages(db *sqlx.DB, tag string) ([]Image, error) {
	imgs := []Image{}
	var err error
	if tag == "" {
		err = db.Select(&imgs, `select * from picar_images`)
	} else {
		err = db.Select(&imgs, `select * from picar_images where tag=?`, tag)
	}
	if err != nil {
		return nil, err
	}
	return imgs, nil
}

func getTags(db *sqlx.DB) ([]Tag, error) {
	tags := []Tag{}
	err := db.Select(&tags, `select * from picar_tags`)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func tagKnown(db *sqlx.DB, tag string) (bool, error) {
	var count int
	err := db.Get(&count, `select count(*) from picar_tags where tag=?`, tag)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func addTag(db *sqlx.DB, tag string) error {
	_, err := db.Exec(`insert or ignore into picar_tags (tag) values (?)`, tag)
	return err
}

// Create saves an image record
func (i *Image) Create(db *sqlx.DB) error {
	res, err := db.Exec(`insert into picar_images
		(tag, img_url, uploader, uploaderId, upload_time)
		values (?, ?, ?, ?, ?)`,
		i.Tag, i.ImgURL, i.Uploader, i.UploaderID, i.UploadTime)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	i.ID = id
	return nil
}
