package common

// AccessTokenCookieName is the default cookie carrying the access token.
const AccessTokenCookieName = "access_token"

// PartsPerStory is the number of parts that make up a finished story.
const PartsPerStory = 5

// UserIDContextKey is the gin context key holding the resolved user id.
const UserIDContextKey = "user_id"
