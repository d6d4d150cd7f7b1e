package storage

const Schema = `
-- Every indexed file. timestamp is the file mtime seen when it was last processed.
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    timestamp INTEGER,
    fullpath TEXT UNIQUE
);

-- Lower-cased tokens found in any document
CREATE TABLE IF NOT EXISTS keywords (
    id INTEGER PRIMARY KEY,
    keyword TEXT UNIQUE
);
CREATE INDEX IF NOT EXISTS i_keywords_keyword ON keywords (keyword);

CREATE TABLE IF NOT EXISTS kw2doc (
    kwID INTEGER,
    docID INTEGER,
    UNIQUE (kwID, docID)
);
CREATE INDEX IF NOT EXISTS i_kw2doc_kwID ON kw2doc (kwID);
CREATE INDEX IF NOT EXISTS i_kw2doc_docID ON kw2doc (docID);

-- Generation marker per document. -1 means the last attempt to index it failed.
CREATE TABLE IF NOT EXISTS documentInIndex (
    docID INTEGER UNIQUE,
    indexID INTEGER
);
CREATE INDEX IF NOT EXISTS i_documentInIndex_indexID ON documentInIndex (indexID);

-- One row per update run, id is the generation
CREATE TABLE IF NOT EXISTS indexInfo (
    id INTEGER PRIMARY KEY,
    timestamp INTEGER
);

-- File names without extension, lower-cased
CREATE TABLE IF NOT EXISTS fileName (
    id INTEGER PRIMARY KEY,
    name TEXT,
    ext TEXT,
    UNIQUE (name, ext)
);

CREATE TABLE IF NOT EXISTS fileName2doc (
    fileNameID INTEGER,
    docID INTEGER,
    UNIQUE (fileNameID, docID)
);
CREATE INDEX IF NOT EXISTS i_fileName2doc_fileNameID ON fileName2doc (fileNameID);
CREATE INDEX IF NOT EXISTS i_fileName2doc_docID ON fileName2doc (docID);

-- Files skipped because of their extension, kept for the latest run only
CREATE TABLE IF NOT EXISTS excludedExtensions (
    generationId INTEGER,
    extension TEXT,
    fileCount INTEGER,
    UNIQUE (generationId, extension)
);
`
