package shared

import "strconv"

// UserID identifies a learner.
type UserID int64

// CourseID identifies a course. The zero value is the user-wide scope used by
// rewards that do not belong to a course.
type CourseID int64

// ModuleID identifies a module, ordinary or bonus.
type ModuleID int64

// PictureID identifies a picture a learner can interact with.
type PictureID int64

// GlobalScope is the course scope of user-wide reward claims.
const GlobalScope CourseID = 0

func (u UserID) IsValid() bool    { return u > 0 }
func (c CourseID) IsValid() bool  { return c > 0 }
func (m ModuleID) IsValid() bool  { return m > 0 }
func (p PictureID) IsValid() bool { return p > 0 }

func (u UserID) String() string    { return strconv.FormatInt(int64(u), 10) }
func (c CourseID) String() string  { return strconv.FormatInt(int64(c), 10) }
func (m ModuleID) String() string  { return strconv.FormatInt(int64(m), 10) }
func (p PictureID) String() string { return strconv.FormatInt(int64(p), 10) }

// Coins is an amount of currency. Balances are never negative.
type Coins int64
