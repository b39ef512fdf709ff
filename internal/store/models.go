package store

import "time"

// User is a row of the users table. Fields outside the projection a row was
// read with are left at their zero value.
type User struct {
	ID        int64
	Name      string
	Email     string
	Password  string
	Photo     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Get returns the value of a GraphQL field backed by a column.
func (u *User) Get(field string) (any, bool) { return Users.Value(u, field) }

type Post struct {
	ID        int64
	Title     string
	Content   string
	Photo     string
	Author    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Post) Get(field string) (any, bool) { return Posts.Value(p, field) }

type Comment struct {
	ID        int64
	Comment   string
	Post      int64
	User      int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Comment) Get(field string) (any, bool) { return Comments.Value(c, field) }

var Users = NewTable("users",
	Column[User]{Field: "id", Name: "id", Ref: func(u *User) any { return &u.ID }},
	Column[User]{Field: "name", Name: "name", Ref: func(u *User) any { return &u.Name }, Writable: true},
	Column[User]{Field: "email", Name: "email", Ref: func(u *User) any { return &u.Email }, Writable: true},
	Column[User]{Field: "password", Name: "password", Ref: func(u *User) any { return &u.Password }, Writable: true},
	Column[User]{Field: "photo", Name: "photo", Ref: func(u *User) any { return &u.Photo }, Writable: true},
	Column[User]{Field: "createdAt", Name: "created_at", Ref: func(u *User) any { return &u.CreatedAt }},
	Column[User]{Field: "updatedAt", Name: "updated_at", Ref: func(u *User) any { return &u.UpdatedAt }},
)

var Posts = NewTable("posts",
	Column[Post]{Field: "id", Name: "id", Ref: func(p *Post) any { return &p.ID }},
	Column[Post]{Field: "title", Name: "title", Ref: func(p *Post) any { return &p.Title }, Writable: true},
	Column[Post]{Field: "content", Name: "content", Ref: func(p *Post) any { return &p.Content }, Writable: true},
	Column[Post]{Field: "photo", Name: "photo", Ref: func(p *Post) any { return &p.Photo }, Writable: true},
	Column[Post]{Field: "author", Name: "author", Ref: func(p *Post) any { return &p.Author }, Writable: true},
	Column[Post]{Field: "createdAt", Name: "created_at", Ref: func(p *Post) any { return &p.CreatedAt }},
	Column[Post]{Field: "updatedAt", Name: "updated_at", Ref: func(p *Post) any { return &p.UpdatedAt }},
)

var Comments = NewTable("comments",
	Column[Comment]{Field: "id", Name: "id", Ref: func(c *Comment) any { return &c.ID }},
	Column[Comment]{Field: "comment", Name: "comment", Ref: func(c *Comment) any { return &c.Comment }, Writable: true},
	Column[Comment]{Field: "post", Name: "post", Ref: func(c *Comment) any { return &c.Post }, Writable: true},
	Column[Comment]{Field: "user", Name: "user", Ref: func(c *Comment) any { return &c.User }, Writable: true},
	Column[Comment]{Field: "createdAt", Name: "created_at", Ref: func(c *Comment) any { return &c.CreatedAt }},
	Column[Comment]{Field: "updatedAt", Name: "updated_at", Ref: func(c *Comment) any { return &c.UpdatedAt }},
)
