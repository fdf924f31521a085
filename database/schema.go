package database

const AuthSchema = `
CREATE TABLE IF NOT EXISTS credentials (
    username        VARCHAR(64) PRIMARY KEY,
    password_hashed TEXT NOT NULL,
    salt            TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const UserSchema = `
CREATE TABLE IF NOT EXISTS users (
    username     VARCHAR(64) PRIMARY KEY,
    display_name VARCHAR(128) NOT NULL,
    avatar       TEXT NOT NULL DEFAULT '',
    bio          TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS friendships (
    username    VARCHAR(64) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
    friend_name VARCHAR(64) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (username, friend_name)
);

CREATE TABLE IF NOT EXISTS friend_requests (
    sender     VARCHAR(64) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
    receiver   VARCHAR(64) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (sender, receiver)
);

CREATE INDEX IF NOT EXISTS idx_friend_requests_receiver ON friend_requests(receiver);
CREATE INDEX IF NOT EXISTS idx_users_display_name ON users(LOWER(display_name));
`

const NotiSchema = `
CREATE TABLE IF NOT EXISTS notifications (
    id          SERIAL PRIMARY KEY,
    username    VARCHAR(64) NOT NULL,
    icon        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL,
    link        TEXT NOT NULL DEFAULT '',
    read        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_username ON notifications(username, created_at DESC);

CREATE TABLE IF NOT EXISTS devices (
    token      TEXT PRIMARY KEY,
    username   VARCHAR(64) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_devices_username ON devices(username);
`

// MessageSchema keeps direct groups unique per unordered pair through
// direct_key, which is NULL for multi-party groups.
const MessageSchema = `
CREATE TABLE IF NOT EXISTS chat_groups (
    id            SERIAL PRIMARY KEY,
    name          VARCHAR(128) NOT NULL DEFAULT '',
    is_direct     BOOLEAN NOT NULL DEFAULT FALSE,
    owner_name    VARCHAR(64),
    direct_key    TEXT UNIQUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id  INTEGER NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
    username  VARCHAR(64) NOT NULL,
    joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (group_id, username)
);

CREATE INDEX IF NOT EXISTS idx_group_members_username ON group_members(username);

CREATE TABLE IF NOT EXISTS messages (
    id         BIGSERIAL PRIMARY KEY,
    group_id   INTEGER NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
    username   VARCHAR(64) NOT NULL,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_id, id DESC);
`
